package system

import (
	"github.com/julianstephens/routined/internal/cli"
)

// ConfigCmd prints the effective worker configuration after file and
// environment overrides.
type ConfigCmd struct{}

func (cmd *ConfigCmd) Run(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	ctx.Printf("%s", data)
	return nil
}
