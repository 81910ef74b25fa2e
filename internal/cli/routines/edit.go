package routines

import (
	"fmt"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
)

type RoutineEditCmd struct {
	ID          string  `arg:"" help:"Routine ID to edit."`
	Title       *string `help:"New title."`
	Days        *string `short:"d" help:"New weekday set."`
	Start       *string `short:"s" help:"New start time (HH:MM)."`
	End         *string `short:"e" help:"New end time (HH:MM); empty to clear."`
	Category    *string `short:"c" help:"New category."`
	Priority    *string `short:"p" help:"New priority."`
	Description *string `help:"New description."`
}

func (c *RoutineEditCmd) Run(ctx *cli.Context) error {
	routine, err := ctx.Store.GetRoutine(c.ID)
	if err != nil {
		return fmt.Errorf("routine not found: %w", err)
	}

	updated := false
	if c.Title != nil {
		routine.Title = *c.Title
		updated = true
	}
	if c.Days != nil {
		days, err := utils.ParseWeekdays(*c.Days)
		if err != nil {
			return err
		}
		routine.Days = days
		updated = true
	}
	if c.Start != nil {
		routine.StartTime = *c.Start
		updated = true
	}
	if c.End != nil {
		routine.EndTime = *c.End
		updated = true
	}
	if c.Category != nil {
		category, err := models.ParseCategory(*c.Category)
		if err != nil {
			return err
		}
		routine.Category = category
		updated = true
	}
	if c.Priority != nil {
		priority, err := models.ParsePriority(*c.Priority)
		if err != nil {
			return err
		}
		routine.Priority = priority
		updated = true
	}
	if c.Description != nil {
		routine.Description = *c.Description
		updated = true
	}

	if !updated {
		ctx.Println("No changes specified.")
		return nil
	}
	if err := ctx.Store.UpdateRoutine(routine); err != nil {
		return fmt.Errorf("failed to update routine: %w", err)
	}
	ctx.Printf("✓ Updated routine: %s (%s, %s)\n", routine.Title, routine.Window(), routine.FormatDays())
	ctx.Println(cli.MutedStyle.Render("  Executions already created keep their original window."))
	warnConflicts(ctx, routine.UserID)
	return nil
}
