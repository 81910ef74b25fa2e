package system

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/storage"
	"github.com/julianstephens/routined/internal/utils"
	"github.com/julianstephens/routined/internal/validation"
)

type DoctorCmd struct {
	SkipWorker bool `help:"Do not probe the worker." name:"skip-worker"`
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	fail := func(name string, err error) {
		ctx.Printf("❌ %s: FAIL\n", name)
		ctx.Printf("   Error: %v\n", err)
		hasError = true
	}
	warn := func(name string, err error) {
		ctx.Printf("⚠ %s: WARNING\n", name)
		ctx.Printf("   %v\n", err)
	}
	ok := func(name string) {
		ctx.Printf("✓ %s: OK\n", name)
	}
	skip := func(name, why string) {
		ctx.Printf("⊘ %s: SKIPPED (%s)\n", name, why)
	}

	dbReachable := false
	if err := checkDBReachable(ctx); err != nil {
		fail("Database reachable", err)
	} else {
		ok("Database reachable")
		dbReachable = true
	}

	dbChecks := []struct {
		name  string
		check func(*cli.Context) error
	}{
		{"Schema version", checkSchemaVersion},
		{"Migrations complete", checkMigrationsComplete},
		{"Settings", checkSettings},
		{"Routine definitions", checkRoutines},
	}
	for _, c := range dbChecks {
		if !dbReachable {
			skip(c.name, "database not reachable")
			continue
		}
		if err := c.check(ctx); err != nil {
			fail(c.name, err)
		} else {
			ok(c.name)
		}
	}

	// Overlaps are allowed; they only queue one after the other.
	if dbReachable {
		if err := checkConflicts(ctx); err != nil {
			warn("Routine conflicts", err)
		} else {
			ok("Routine conflicts")
		}
	}

	if err := checkClock(ctx.Now()); err != nil {
		fail("Clock", err)
	} else {
		ok("Clock")
	}

	cfgOK := true
	if _, err := ctx.Config(); err != nil {
		fail("Worker config", err)
		cfgOK = false
	} else {
		ok("Worker config")
	}

	switch {
	case cmd.SkipWorker:
		skip("Worker reachable", "--skip-worker")
	case !cfgOK:
		skip("Worker reachable", "invalid worker config")
	default:
		if err := checkWorker(ctx); err != nil {
			warn("Worker reachable", err)
		} else {
			ok("Worker reachable")
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if _, err := ctx.Store.GetSettings(); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func schemaVersion(ctx *cli.Context) (int, int, error) {
	migrator, ok := ctx.Store.(storage.Migrator)
	if !ok {
		return 0, 0, nil
	}
	current, latest, err := migrator.SchemaVersion()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return current, latest, nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	current, latest, err := schemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	current, latest, err := schemaVersion(ctx)
	if err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run 'routined migrate')", current, latest)
	}
	return nil
}

func checkSettings(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return err
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("unknown timezone %q", settings.Timezone)
	}
	if settings.StartOffsetMin < 0 || settings.EndOffsetMin < 0 {
		return fmt.Errorf("notification offsets must not be negative")
	}
	return nil
}

func checkRoutines(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return nil
	}
	routines, err := ctx.Store.GetRoutines(cfg.UserID, true)
	if err != nil {
		return fmt.Errorf("failed to get routines: %w", err)
	}
	for _, r := range routines {
		if err := validation.ValidateRoutine(r); err != nil {
			return fmt.Errorf("routine %s (%s): %w", r.ID, r.Title, err)
		}
	}
	return nil
}

func checkConflicts(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return nil
	}
	routines, err := ctx.Store.GetRoutines(cfg.UserID, false)
	if err != nil {
		return err
	}
	result := validation.New().ValidateRoutines(routines)
	if result.HasConflicts() {
		return fmt.Errorf("%d conflict(s); see 'routined routine check'", len(result.Conflicts))
	}
	return nil
}

func checkClock(now time.Time) error {
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

func checkWorker(ctx *cli.Context) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	reqCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, cfg.BaseURL()+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("worker not running at %s; start it with 'routined worker'", cfg.Listen)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("worker health check returned %s", resp.Status)
	}
	return nil
}
