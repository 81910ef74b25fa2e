package notifications

import (
	"context"
	"encoding/json"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/models"
)

// PushCmd delivers a push payload to the worker the way a push service
// would.
type PushCmd struct {
	Payload string `arg:"" optional:"" help:"Raw payload. Plain text becomes the body."`
	Title   string `short:"t" help:"Title; builds a JSON payload instead of sending the raw one."`
	Body    string `short:"b" help:"Body for the JSON payload."`
	Routine string `help:"Routine ID to attach, enabling the start action."`
}

type pushBody struct {
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Encode returns the bytes sent to the worker.
func (c *PushCmd) Encode() ([]byte, error) {
	if c.Title == "" && c.Body == "" && c.Routine == "" {
		return []byte(c.Payload), nil
	}
	p := pushBody{Title: c.Title, Body: c.Body}
	if c.Routine != "" {
		p.Data = map[string]string{models.DataRoutineID: c.Routine}
	}
	return json.Marshal(p)
}

func (c *PushCmd) Run(ctx *cli.Context) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := postWorker(reqCtx, ctx, "/push", payload); err != nil {
		return err
	}
	ctx.Println("✓ Push delivered")
	return nil
}
