// Package client is the foreground side of the worker socket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/logger"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/notifier"
)

// ErrClosed is returned by requests made after the connection dropped.
var ErrClosed = errors.New("worker connection closed")

// RemoteError is an ERROR reply from the worker.
type RemoteError struct {
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("worker rejected %s: %s", e.Type, e.Message)
}

// Client sends protocol messages to the worker and receives START_ROUTINE
// events. Requests may be issued from several goroutines.
type Client struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[string]chan notifier.Envelope
	closed  bool

	events chan notifier.StartRoutineEvent
	done   chan struct{}
	cancel context.CancelFunc
}

// WebsocketURL turns a listen address or http URL into the worker socket URL.
func WebsocketURL(addr string) string {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		if strings.HasSuffix(addr, "/ws") {
			return addr
		}
		return addr + "/ws"
	case strings.HasPrefix(addr, "http://"):
		return "ws://" + strings.TrimPrefix(addr, "http://") + "/ws"
	case strings.HasPrefix(addr, "https://"):
		return "wss://" + strings.TrimPrefix(addr, "https://") + "/ws"
	default:
		return "ws://" + addr + "/ws"
	}
}

// Dial connects to the worker at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, constants.DefaultRegisterWait)
	defer cancel()

	url := WebsocketURL(addr)
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to worker at %s: %w", url, err)
	}
	conn.SetReadLimit(constants.MaxMessageBytes)

	readCtx, readCancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan notifier.Envelope),
		events:  make(chan notifier.StartRoutineEvent, 16),
		done:    make(chan struct{}),
		cancel:  readCancel,
	}
	go c.readLoop(readCtx)
	logger.Debug("Connected to worker", "url", url)
	return c, nil
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.shutdown()
	for {
		mt, data, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) == -1 {
				logger.Debug("Worker read failed", "error", err)
			}
			return
		}
		if mt != websocket.MessageText {
			continue
		}
		env, err := notifier.UnmarshalEnvelope(data)
		if err != nil {
			logger.Debug("Ignoring malformed frame", "error", err)
			continue
		}

		if env.Type == notifier.MsgStartRoutine {
			var ev notifier.StartRoutineEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				continue
			}
			select {
			case c.events <- ev:
			default:
				logger.Warn("Dropping start event, consumer is behind", "routine", ev.RoutineID)
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()
		if ok {
			ch <- env
		}
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	close(c.events)
	close(c.done)
}

// Events delivers START_ROUTINE events. Delivery is at most once; the channel
// closes when the connection drops.
func (c *Client) Events() <-chan notifier.StartRoutineEvent {
	return c.events
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the session.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	<-c.done
	return err
}

func (c *Client) request(ctx context.Context, msg notifier.Message) (notifier.Envelope, error) {
	env, err := notifier.EncodeMessage(msg, "")
	if err != nil {
		return notifier.Envelope{}, err
	}
	data, err := env.Marshal()
	if err != nil {
		return notifier.Envelope{}, err
	}

	ch := make(chan notifier.Envelope, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return notifier.Envelope{}, ErrClosed
	}
	c.pending[env.ID] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
	}

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = c.conn.Write(wctx, websocket.MessageText, data)
	cancel()
	if err != nil {
		forget()
		return notifier.Envelope{}, err
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return notifier.Envelope{}, ErrClosed
		}
		if reply.Type == notifier.MsgError {
			var p notifier.ErrorPayload
			_ = json.Unmarshal(reply.Payload, &p)
			return reply, &RemoteError{Type: env.Type, Message: p.Message}
		}
		return reply, nil
	case <-ctx.Done():
		forget()
		return notifier.Envelope{}, ctx.Err()
	}
}

// Schedule asks the worker to persist and arm req.
func (c *Client) Schedule(ctx context.Context, req models.NotificationRequest) error {
	_, err := c.request(ctx, notifier.ScheduleNotification{Request: req})
	return err
}

// Cancel asks the worker to drop the request with id.
func (c *Client) Cancel(ctx context.Context, id string) error {
	_, err := c.request(ctx, notifier.CancelNotification{ID: id})
	return err
}

// ListPending returns the worker's persisted requests.
func (c *Client) ListPending(ctx context.Context) ([]models.NotificationRequest, error) {
	reply, err := c.request(ctx, notifier.GetScheduled{})
	if err != nil {
		return nil, err
	}
	if reply.Type != notifier.MsgScheduled {
		return nil, fmt.Errorf("unexpected reply %s to %s", reply.Type, notifier.MsgGetScheduled)
	}
	var list notifier.ScheduledList
	if err := json.Unmarshal(reply.Payload, &list); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", reply.Type, err)
	}
	return list.Notifications, nil
}

// ShowImmediate asks the worker to present n now.
func (c *Client) ShowImmediate(ctx context.Context, n models.Notification) error {
	_, err := c.request(ctx, notifier.ShowImmediate{Notification: n})
	return err
}
