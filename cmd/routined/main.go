package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/cli/executions"
	"github.com/julianstephens/routined/internal/cli/notifications"
	"github.com/julianstephens/routined/internal/cli/prompts"
	"github.com/julianstephens/routined/internal/cli/routines"
	"github.com/julianstephens/routined/internal/cli/settings"
	"github.com/julianstephens/routined/internal/cli/system"
	"github.com/julianstephens/routined/internal/config"
	"github.com/julianstephens/routined/internal/constants"
	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/keyring"
	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/storage"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string   `help:"Routine database: SQLite path or PostgreSQL connection string without a password. Falls back to ROUTINED_DB_CONNECTION, then the OS keyring, then ~/.config/routined/routined.db." type:"string"`
	Settings string   `help:"Worker settings YAML file." type:"path" default:"~/.config/routined/routined.yaml"`
	EnvFile  []string `help:"Extra .env files loaded before the environment is read." name:"env-file" type:"existingfile"`
	Debug    bool     `help:"Log to stderr at debug level."`

	Init       system.InitCmd    `cmd:"" help:"Initialize routined storage."`
	Migrate    system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor     system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	ShowConfig system.ConfigCmd  `cmd:"" name:"config" help:"Print the effective worker configuration."`
	Keyring    struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store the PostgreSQL connection string."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show the stored connection string (password masked)."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check keyring availability." default:"1"`
	} `cmd:"" help:"Manage the database connection string in the OS keyring."`

	Routine struct {
		Add    routines.RoutineAddCmd    `cmd:"" help:"Add a routine."`
		List   routines.RoutineListCmd   `cmd:"" help:"List routines." default:"1"`
		Edit   routines.RoutineEditCmd   `cmd:"" help:"Edit a routine."`
		Toggle routines.RoutineToggleCmd `cmd:"" help:"Activate or deactivate a routine."`
		Delete routines.RoutineDeleteCmd `cmd:"" help:"Delete a routine and its executions."`
		Check  routines.RoutineCheckCmd  `cmd:"" help:"Report overlapping or duplicate routines."`
	} `cmd:"" help:"Manage routines."`
	Exec struct {
		List executions.ExecListCmd `cmd:"" help:"List executions for a day." default:"1"`
		Mark executions.ExecMarkCmd `cmd:"" help:"Set the status of an execution."`
	} `cmd:"" help:"Inspect routine executions."`
	Queue       prompts.QueueCmd     `cmd:"" help:"Answer due routine prompts." default:"1"`
	SettingsCmd settings.SettingsCmd `cmd:"" name:"settings" help:"Manage notification settings."`

	Worker   notifications.WorkerCmd   `cmd:"" help:"Run the background notification worker."`
	Sweep    notifications.SweepCmd    `cmd:"" help:"Ask the worker to deliver due notifications now."`
	Pending  notifications.PendingCmd  `cmd:"" help:"List notifications waiting in the worker."`
	Schedule notifications.ScheduleCmd `cmd:"" help:"Schedule a notification in the worker."`
	Cancel   notifications.CancelCmd   `cmd:"" help:"Cancel a scheduled notification."`
	Push     notifications.PushCmd     `cmd:"" help:"Deliver a push payload through the worker."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Weekly routine reminders with an interactive start/finish queue"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	if err := config.LoadEnvFiles(append([]string{".env"}, CLI.EnvFile...)...); err != nil {
		rerrors.Fatal(err)
	}

	command := kctx.Command()
	configDir, err := storage.ExpandPath(filepath.Dir(constants.DefaultConfigPath))
	if err != nil {
		rerrors.Fatal(err)
	}
	logCfg := logger.Config{Debug: CLI.Debug, ConfigDir: configDir}
	if strings.HasPrefix(command, "worker") {
		logCfg.Component = "worker"
		logCfg.Level = "info"
	}
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}

	target, err := keyring.ResolveConnectionString(CLI.Config)
	if err != nil {
		rerrors.Fatal(err)
	}
	// Storeless commands tolerate a bad target; init and store commands do not.
	store, err := storage.New(target)
	usesStore := cli.NeedsStore(command) || strings.HasPrefix(command, "init")
	if err != nil && usesStore {
		rerrors.Fatal(err)
	}

	appCtx := cli.NewContext(store, CLI.Settings)
	if cli.NeedsStore(command) {
		if err := store.Load(); err != nil {
			rerrors.Fatal(err)
		}
	}
	if store != nil {
		defer store.Close()
	}

	if err := kctx.Run(appCtx); err != nil {
		if store != nil {
			store.Close()
		}
		rerrors.Fatal(err)
	}
}
