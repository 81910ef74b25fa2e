package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	ps "github.com/mitchellh/go-ps"

	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/models"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func withTrayEnv(t *testing.T, configDir string, proc ps.Process) {
	t.Helper()
	oldDir, oldFind := userConfigDirFunc, findProcessFunc
	t.Cleanup(func() {
		userConfigDirFunc = oldDir
		findProcessFunc = oldFind
	})
	userConfigDirFunc = func() (string, error) { return configDir, nil }
	findProcessFunc = func(pid int) (ps.Process, error) { return proc, nil }
}

func TestGetTrayAppConfigDir(t *testing.T) {
	tempDir := t.TempDir()
	withTrayEnv(t, tempDir, nil)

	want := filepath.Join(tempDir, constants.TrayAppIdentifier)
	dir, err := GetTrayAppConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != want {
		t.Errorf("expected %s, got %s", want, dir)
	}

	if err := os.MkdirAll(want, 0755); err != nil {
		t.Fatal(err)
	}
	customDir := "/custom/tray/dir"
	settingsJSON := fmt.Sprintf(`{"settings": {"lockfile_dir": %q}}`, customDir)
	if err := os.WriteFile(filepath.Join(want, "settings.json"), []byte(settingsJSON), 0644); err != nil {
		t.Fatal(err)
	}
	dir, err = GetTrayAppConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != customDir {
		t.Errorf("expected %s, got %s", customDir, dir)
	}
}

func TestFindAndValidateTrayProcess(t *testing.T) {
	tempDir := t.TempDir()
	lockfilePath := filepath.Join(tempDir, constants.NotifierLockfileName)

	tests := []struct {
		name     string
		content  string
		proc     ps.Process
		wantErr  bool
		wantPort string
	}{
		{name: "missing lockfile", wantErr: true},
		{name: "two part format", content: "8080|12345", wantErr: true},
		{name: "garbage", content: "invalid", wantErr: true},
		{name: "port out of range", content: "70000|12345|s3cret", wantErr: true},
		{name: "empty secret", content: "8080|12345| ", wantErr: true},
		{name: "no process", content: "8080|12345|s3cret", wantErr: true},
		{name: "wrong executable", content: "8080|12345|s3cret", proc: &mockProcess{pid: 12345, executable: "bash"}, wantErr: true},
		{name: "valid", content: "8080|12345|s3cret", proc: &mockProcess{pid: 12345, executable: "routined-tray"}, wantPort: "8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTrayEnv(t, tempDir, tt.proc)
			_ = os.Remove(lockfilePath)
			if tt.content != "" {
				if err := os.WriteFile(lockfilePath, []byte(tt.content), 0644); err != nil {
					t.Fatal(err)
				}
			}
			port, secret, err := findAndValidateTrayProcess(lockfilePath)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if port != tt.wantPort || secret != "s3cret" {
				t.Errorf("got port=%s secret=%s", port, secret)
			}
		})
	}
}

func TestTrayPresenter_Present(t *testing.T) {
	var received WebhookPayload
	var gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Routined-Secret")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}

	tempDir := t.TempDir()
	withTrayEnv(t, tempDir, &mockProcess{pid: 4242, executable: "routined-tray"})
	trayDir := filepath.Join(tempDir, constants.TrayAppIdentifier)
	if err := os.MkdirAll(trayDir, 0755); err != nil {
		t.Fatal(err)
	}
	lock := fmt.Sprintf("%s|4242|s3cret", u.Port())
	if err := os.WriteFile(filepath.Join(trayDir, constants.NotifierLockfileName), []byte(lock), 0644); err != nil {
		t.Fatal(err)
	}

	n := NotificationFor(testRequest("e1:start", baseTime))
	if err := NewTrayPresenter().Present(context.Background(), n); err != nil {
		t.Fatalf("Present() failed: %v", err)
	}
	if gotSecret != "s3cret" {
		t.Errorf("secret header = %q", gotSecret)
	}
	if received.Text != "Academia: Time to start" || received.Tag != "r1-e1-start" {
		t.Errorf("payload = %+v", received)
	}
	if len(received.Actions) != 2 || received.Actions[0] != constants.ActionStart {
		t.Errorf("actions = %v", received.Actions)
	}
	if received.DurationMs != constants.NotificationDurationMs {
		t.Errorf("duration = %d", received.DurationMs)
	}
}

func TestTrayPresenter_Unavailable(t *testing.T) {
	withTrayEnv(t, t.TempDir(), nil)
	err := NewTrayPresenter().Present(context.Background(), models.Notification{Title: "x"})
	if !errors.Is(err, ErrTrayUnavailable) {
		t.Errorf("Present() error = %v, want ErrTrayUnavailable", err)
	}
}

func TestTrayPresenter_ServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()
	u, _ := url.Parse(server.URL)

	tempDir := t.TempDir()
	withTrayEnv(t, tempDir, &mockProcess{pid: 1, executable: "routined-tray"})
	trayDir := filepath.Join(tempDir, constants.TrayAppIdentifier)
	_ = os.MkdirAll(trayDir, 0755)
	_ = os.WriteFile(filepath.Join(trayDir, constants.NotifierLockfileName), []byte(u.Port()+"|1|s"), 0644)

	if err := NewTrayPresenter().Present(context.Background(), models.Notification{Title: "x"}); err == nil {
		t.Fatal("expected error from tray")
	}
	if attempts != constants.NotifyMaxRetries {
		t.Errorf("attempts = %d, want %d", attempts, constants.NotifyMaxRetries)
	}
}
