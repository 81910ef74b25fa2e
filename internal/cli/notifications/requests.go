package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
)

const requestTimeout = 10 * time.Second

// SweepCmd asks the worker to show every due notification now.
type SweepCmd struct{}

func (c *SweepCmd) Run(ctx *cli.Context) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	path := "/wake/" + string(constants.TriggerPeriodicSync) + "?tag=" + url.QueryEscape(constants.TagCheckRoutines)
	if _, err := postWorker(reqCtx, ctx, path, nil); err != nil {
		return err
	}
	ctx.Println("✓ Sweep completed")
	return nil
}

// PendingCmd lists the requests the worker is holding.
type PendingCmd struct{}

func (c *PendingCmd) Run(ctx *cli.Context) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	cl, err := ctx.DialWorker(reqCtx)
	if err != nil {
		return err
	}
	defer cl.Close()

	pending, err := cl.ListPending(reqCtx)
	if err != nil {
		return fmt.Errorf("failed to list pending notifications: %w", err)
	}
	if len(pending) == 0 {
		ctx.Println("No pending notifications.")
		return nil
	}

	header := fmt.Sprintf("%-44s %-17s %-6s %s", "ID", "When", "Type", "Title")
	ctx.Println(cli.HeaderStyle.Render(header))
	ctx.Println(strings.Repeat("-", len(header)))
	for _, req := range pending {
		kind := req.Type
		if kind == "" {
			kind = "-"
		}
		ctx.Printf("%-44s %-17s %-6s %s\n",
			cli.Truncate(req.ID, 44), req.ScheduledTime.Local().Format("2006-01-02 15:04"), kind, req.Title)
	}
	return nil
}

// ScheduleCmd hands one ad-hoc request to the worker.
type ScheduleCmd struct {
	Title   string        `arg:"" help:"Notification title."`
	Body    string        `short:"b" help:"Notification body."`
	At      string        `help:"When to fire: HH:MM today (local time) or RFC3339."`
	In      time.Duration `help:"Fire after this delay, e.g. 15m."`
	ID      string        `help:"Request ID. Reusing an ID replaces the earlier request."`
	Routine string        `help:"Routine ID for the notification's start action."`
}

func (c *ScheduleCmd) Validate() error {
	if c.At != "" && c.In != 0 {
		return errors.New("use either --at or --in, not both")
	}
	if c.In < 0 {
		return errors.New("--in must not be negative")
	}
	return nil
}

// When resolves the fire time relative to now.
func (c *ScheduleCmd) When(now time.Time) (time.Time, error) {
	switch {
	case c.In > 0:
		return now.Add(c.In), nil
	case c.At == "":
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, c.At); err == nil {
		return t, nil
	}
	t, err := utils.CombineDateAndTime(utils.DateString(now), c.At, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q (expected HH:MM or RFC3339): %w", c.At, err)
	}
	return t, nil
}

func (c *ScheduleCmd) Run(ctx *cli.Context) error {
	at, err := c.When(ctx.Now())
	if err != nil {
		return err
	}
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	req := models.NotificationRequest{
		ID:            id,
		Title:         c.Title,
		Body:          c.Body,
		ScheduledTime: at,
		RoutineID:     c.Routine,
		Type:          models.NotificationTypeReminder,
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	cl, err := ctx.DialWorker(reqCtx)
	if err != nil {
		return err
	}
	defer cl.Close()

	if err := cl.Schedule(reqCtx, req); err != nil {
		return fmt.Errorf("failed to schedule notification: %w", err)
	}
	ctx.Printf("✓ Scheduled %q for %s\n", req.Title, at.Format("2006-01-02 15:04"))
	ctx.Printf("  ID: %s\n", req.ID)
	return nil
}

// CancelCmd drops a pending request. Unknown IDs are not an error.
type CancelCmd struct {
	ID string `arg:"" help:"Request ID to cancel."`
}

func (c *CancelCmd) Run(ctx *cli.Context) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	cl, err := ctx.DialWorker(reqCtx)
	if err != nil {
		return err
	}
	defer cl.Close()

	if err := cl.Cancel(reqCtx, c.ID); err != nil {
		return fmt.Errorf("failed to cancel notification: %w", err)
	}
	ctx.Printf("✓ Canceled %s\n", c.ID)
	return nil
}
