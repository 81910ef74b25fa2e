package executions

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
)

type ExecListCmd struct {
	Date    string `arg:"" optional:"" help:"Date (YYYY-MM-DD). Defaults to today."`
	Ensure  bool   `help:"Create missing executions for the date first."`
	ShowIDs bool   `help:"Show execution IDs." name:"show-ids"`
}

func (c *ExecListCmd) Run(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	today, err := ctx.Today()
	if err != nil {
		return err
	}
	date := utils.DateString(today)
	if c.Date != "" {
		if _, err := time.Parse(constants.DateFormat, c.Date); err != nil {
			return fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", c.Date, err)
		}
		date = c.Date
	}

	routines, err := ctx.Store.GetRoutines(cfg.UserID, true)
	if err != nil {
		return fmt.Errorf("failed to get routines: %w", err)
	}
	if c.Ensure {
		day, _ := time.ParseInLocation(constants.DateFormat, date, today.Location())
		for _, r := range utils.OccurrencesOn(routines, day) {
			if _, err := ctx.Store.EnsureExecution(r, date); err != nil {
				logger.Warn("Could not create execution", "routine", r.ID, "date", date, "error", err)
			}
		}
	}

	execs, err := ctx.Store.GetExecutionsForDate(cfg.UserID, date)
	if err != nil {
		return fmt.Errorf("failed to get executions: %w", err)
	}
	if len(execs) == 0 {
		ctx.Printf("No executions for %s.\n", date)
		return nil
	}

	titles := make(map[string]string, len(routines))
	for _, r := range routines {
		titles[r.ID] = r.Title
	}

	ctx.Println(cli.HeaderStyle.Render("Executions for " + date))
	header := fmt.Sprintf("%-28s %-13s %-12s %-8s %-8s", "Routine", "Window", "Status", "Started", "Done")
	if c.ShowIDs {
		header = fmt.Sprintf("%-36s ", "ID") + header
	}
	ctx.Println(header)
	ctx.Println(strings.Repeat("-", len(header)))
	for _, e := range execs {
		window := e.ScheduledTime
		if e.EndTime != "" {
			window += "-" + e.EndTime
		}
		line := fmt.Sprintf("%-28s %-13s %-12s %-8s %-8s",
			cli.Truncate(titles[e.RoutineID], 28), window, padStatus(e.Status, 12),
			clock(e.StartedAt, today.Location()), clock(e.CompletedAt, today.Location()))
		if c.ShowIDs {
			line = fmt.Sprintf("%-36s ", e.ID) + line
		}
		ctx.Println(line)
	}
	return nil
}

// padStatus pads before styling so ANSI codes do not break the columns.
func padStatus(s models.ExecutionStatus, width int) string {
	pad := width - len(s)
	if pad < 0 {
		pad = 0
	}
	return cli.FormatStatus(s) + strings.Repeat(" ", pad)
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(constants.TimeFormat)
}
