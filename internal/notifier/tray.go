package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/models"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// ErrTrayUnavailable is returned when no live tray app can be found.
var ErrTrayUnavailable = errors.New("tray app is not running")

const trayExecutablePrefix = "routined-tray"

// WebhookPayload is the body POSTed to the tray app.
type WebhookPayload struct {
	Text       string            `json:"text"`
	Title      string            `json:"title,omitempty"`
	Body       string            `json:"body,omitempty"`
	Tag        string            `json:"tag,omitempty"`
	Actions    []string          `json:"actions,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	DurationMs uint32            `json:"duration_ms"`
}

// TrayPresenter delivers notifications to the desktop tray app. The tray
// writes "port|pid|secret" to a lockfile; the pid is checked against the
// process table before anything is sent.
type TrayPresenter struct {
	client *http.Client
}

func NewTrayPresenter() *TrayPresenter {
	return &TrayPresenter{client: &http.Client{Timeout: 5 * time.Second}}
}

func (p *TrayPresenter) Present(ctx context.Context, n models.Notification) error {
	configDir, err := GetTrayAppConfigDir()
	if err != nil {
		return err
	}
	port, secret, err := findAndValidateTrayProcess(filepath.Join(configDir, constants.NotifierLockfileName))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTrayUnavailable, err)
	}

	payload := WebhookPayload{
		Text:       trayText(n),
		Title:      n.Title,
		Body:       n.Body,
		Tag:        n.Tag,
		Data:       n.Data,
		DurationMs: constants.NotificationDurationMs,
	}
	for _, a := range n.Actions {
		payload.Actions = append(payload.Actions, a.Action)
	}

	var lastErr error
	for attempt := 0; attempt < constants.NotifyMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(constants.NotifyRetryDelay):
			}
		}
		lastErr = p.send(ctx, port, secret, payload)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func trayText(n models.Notification) string {
	if n.Body == "" {
		return n.Title
	}
	return n.Title + ": " + n.Body
}

// GetTrayAppConfigDir returns the directory holding the tray lockfile. The
// tray's settings.json may point it elsewhere via lockfile_dir.
func GetTrayAppConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	trayConfigDir := filepath.Join(configDir, constants.TrayAppIdentifier)

	data, err := os.ReadFile(filepath.Join(trayConfigDir, "settings.json"))
	if err != nil {
		return trayConfigDir, nil
	}
	var store struct {
		Settings struct {
			LockfileDir *string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &store); err == nil {
		if dir := store.Settings.LockfileDir; dir != nil && *dir != "" {
			return *dir, nil
		}
	}
	return trayConfigDir, nil
}

func findAndValidateTrayProcess(lockfilePath string) (string, string, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return "", "", errors.New("lockfile not found")
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return "", "", errors.New("lockfile is malformed")
	}

	port := strings.TrimSpace(parts[0])
	if port == "" {
		return "", "", errors.New("port in lockfile is empty")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return "", "", errors.New("invalid port number in lockfile")
	}
	if portNum < 1 || portNum > 65535 {
		return "", "", fmt.Errorf("port number %d is outside valid range (1-65535)", portNum)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", "", errors.New("invalid process ID in lockfile")
	}
	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return "", "", errors.New("secret in lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return "", "", fmt.Errorf("no process with PID %d", pid)
	}
	if !strings.HasPrefix(process.Executable(), trayExecutablePrefix) {
		return "", "", fmt.Errorf("process with PID %d is not the tray app (is %s)", pid, process.Executable())
	}
	return port, secret, nil
}

func (p *TrayPresenter) send(ctx context.Context, port, secret string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://127.0.0.1:"+port, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Routined-Secret", secret)

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("tray notification failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
}
