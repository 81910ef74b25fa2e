package routines

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
	"github.com/julianstephens/routined/internal/validation"
)

type RoutineAddCmd struct {
	Title       string `arg:"" help:"Routine title."`
	Days        string `short:"d" help:"Comma-separated weekdays, or daily|weekdays|weekends." required:""`
	Start       string `short:"s" help:"Start time (HH:MM)." required:""`
	End         string `short:"e" help:"End time (HH:MM). Must be later the same day."`
	Category    string `short:"c" help:"Category (work|study|personal|health|other)." default:"other"`
	Priority    string `short:"p" help:"Priority (low|medium|high)." default:"medium"`
	Description string `help:"Longer description."`
	Inactive    bool   `help:"Create the routine deactivated."`
}

func (c *RoutineAddCmd) Run(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}

	days, err := utils.ParseWeekdays(c.Days)
	if err != nil {
		return err
	}
	category, err := models.ParseCategory(c.Category)
	if err != nil {
		return err
	}
	priority, err := models.ParsePriority(c.Priority)
	if err != nil {
		return err
	}

	routine := models.Routine{
		ID:          uuid.New().String(),
		UserID:      cfg.UserID,
		Title:       c.Title,
		Description: c.Description,
		Days:        days,
		StartTime:   c.Start,
		EndTime:     c.End,
		Category:    category,
		Priority:    priority,
		Active:      !c.Inactive,
	}
	if err := ctx.Store.AddRoutine(routine); err != nil {
		return fmt.Errorf("failed to add routine: %w", err)
	}

	ctx.Printf("✓ Added routine: %s (%s, %s)\n", routine.Title, routine.Window(), routine.FormatDays())
	ctx.Printf("  ID: %s\n", routine.ID)
	warnConflicts(ctx, cfg.UserID)
	return nil
}

// warnConflicts prints overlap and duplicate warnings for the user's active
// routines. Conflicts never block a change.
func warnConflicts(ctx *cli.Context, userID string) {
	routines, err := ctx.Store.GetRoutines(userID, false)
	if err != nil {
		return
	}
	result := validation.New().ValidateRoutines(routines)
	if !result.HasConflicts() {
		return
	}
	ctx.Println()
	ctx.Printf("⚠ %s", result.FormatReport())
}
