package executions

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/config"
	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/storage/sqlite"
)

// 2024-01-15 is a Monday.
var monday = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	settings := models.DefaultSettings()
	settings.Timezone = "UTC"
	if err := store.SaveSettings(settings); err != nil {
		t.Fatal(err)
	}
	err := store.AddRoutine(models.Routine{
		ID:        "academia",
		UserID:    "local",
		Title:     "Academia",
		Days:      []time.Weekday{time.Monday},
		StartTime: "07:00",
		EndTime:   "08:00",
		Category:  models.CategoryHealth,
		Priority:  models.PriorityHigh,
		Active:    true,
	})
	if err != nil {
		t.Fatal(err)
	}

	out := &bytes.Buffer{}
	ctx := cli.NewContext(store, "")
	ctx.Out = out
	ctx.Now = func() time.Time { return monday }
	ctx.SetConfig(config.Default())
	return ctx, out
}

func TestExecListCmd(t *testing.T) {
	ctx, out := setupTestDB(t)

	if err := (&ExecListCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No executions for 2024-01-15") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := (&ExecListCmd{Ensure: true}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Academia") || !strings.Contains(out.String(), "07:00-08:00") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := (&ExecListCmd{Date: "2024-01-16", Ensure: true}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No executions for 2024-01-16") {
		t.Errorf("tuesday should have no executions, got %q", out.String())
	}

	if err := (&ExecListCmd{Date: "15/01/2024"}).Run(ctx); err == nil {
		t.Error("malformed date should fail")
	}
}

func TestExecMarkCmd(t *testing.T) {
	ctx, out := setupTestDB(t)
	r, _ := ctx.Store.GetRoutine("academia")
	exec, err := ctx.Store.EnsureExecution(r, "2024-01-15")
	if err != nil {
		t.Fatal(err)
	}

	if err := (&ExecMarkCmd{ID: exec.ID, Status: "done"}).Run(ctx); err != nil {
		t.Fatalf("exec mark failed: %v", err)
	}
	got, _ := ctx.Store.GetExecution(exec.ID)
	if got.Status != models.StatusDone || got.CompletedAt == nil {
		t.Errorf("execution = %+v", got)
	}
	if !strings.Contains(out.String(), exec.ID) {
		t.Errorf("output = %q", out.String())
	}

	err = (&ExecMarkCmd{ID: exec.ID, Status: "not_done"}).Run(ctx)
	if !errors.Is(err, rerrors.ErrInvalidTransition) {
		t.Errorf("terminal execution changed, err = %v", err)
	}
}
