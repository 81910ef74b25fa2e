package routines

import (
	"fmt"
	"strings"

	"github.com/julianstephens/routined/internal/cli"
)

type RoutineListCmd struct {
	All     bool `short:"a" help:"Include inactive routines."`
	ShowIDs bool `help:"Show routine IDs." name:"show-ids"`
}

func (c *RoutineListCmd) Run(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	routines, err := ctx.Store.GetRoutines(cfg.UserID, c.All)
	if err != nil {
		return fmt.Errorf("failed to get routines: %w", err)
	}
	if len(routines) == 0 {
		ctx.Println("No routines found. Add one with `routined routine add`.")
		return nil
	}

	header := fmt.Sprintf("%-28s %-13s %-24s %-9s %-7s %-6s", "Title", "Window", "Days", "Category", "Prio", "Active")
	if c.ShowIDs {
		header = fmt.Sprintf("%-36s ", "ID") + header
	}
	ctx.Println(cli.HeaderStyle.Render(header))
	ctx.Println(strings.Repeat("-", len(header)))

	for _, r := range routines {
		active := "yes"
		if !r.Active {
			active = cli.MutedStyle.Render("no")
		}
		line := fmt.Sprintf("%-28s %-13s %-24s %-9s %-7s %-6s",
			cli.Truncate(r.Title, 28), r.Window(), cli.Truncate(r.FormatDays(), 24), r.Category, r.Priority, active)
		if c.ShowIDs {
			line = fmt.Sprintf("%-36s ", r.ID) + line
		}
		ctx.Println(line)
	}
	return nil
}
