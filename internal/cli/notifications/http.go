package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/julianstephens/routined/internal/cli"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

type workerError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// postWorker sends body to path on the worker's HTTP surface and returns the
// response body.
func postWorker(ctx context.Context, cliCtx *cli.Context, path string, body []byte) ([]byte, error) {
	cfg, err := cliCtx.Config()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL()+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("worker not reachable at %s (is `routined worker` running?): %w", cfg.Listen, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var we workerError
		if json.Unmarshal(data, &we) == nil && we.Error != "" {
			return nil, fmt.Errorf("worker: %s: %s", we.Error, we.Details)
		}
		return nil, fmt.Errorf("worker returned %s", resp.Status)
	}
	return data, nil
}
