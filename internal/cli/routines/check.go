package routines

import (
	"fmt"
	"strings"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/validation"
)

// RoutineCheckCmd reports overlapping windows and duplicate titles.
type RoutineCheckCmd struct{}

func (c *RoutineCheckCmd) Run(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	routines, err := ctx.Store.GetRoutines(cfg.UserID, false)
	if err != nil {
		return fmt.Errorf("failed to get routines: %w", err)
	}
	result := validation.New().ValidateRoutines(routines)
	ctx.Println(strings.TrimRight(result.FormatReport(), "\n"))
	return nil
}
