// Package client talks to a running worktimer daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/dispatch"
	"github.com/runnerr0/worktimer/internal/reminder"
	"github.com/runnerr0/worktimer/internal/timer"
)

// ErrDaemonUnavailable is returned when the daemon cannot be reached.
var ErrDaemonUnavailable = errors.New("worktimer daemon is not running (start it with `worktimer serve`)")

// Error is a non-2xx reply. Message is the daemon's error text.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string { return e.Message }

// Client sends commands to the daemon at baseURL.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for baseURL such as "http://127.0.0.1:7455".
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// DaemonStatus is the /status reply.
type DaemonStatus struct {
	Version string `json:"version"`
	// Observers counts open event streams.
	Observers int `json:"observers"`
}

// Status reports daemon health.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return out, err
	}
	err = c.do(req, &out)
	return out, err
}

// Send posts msg and decodes the reply into out (which may be nil).
func (c *Client) Send(ctx context.Context, msg dispatch.Message, out any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && !urlErr.Timeout() && req.Context().Err() == nil {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return &Error{StatusCode: resp.StatusCode, Message: e.Error}
		}
		return &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("daemon returned %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

func (c *Client) ack(ctx context.Context, msg dispatch.Message) error {
	var a dispatch.Ack
	if err := c.Send(ctx, msg, &a); err != nil {
		return err
	}
	if !a.Success {
		return fmt.Errorf("%s was not acknowledged", msg.Action)
	}
	return nil
}

// StartTimer sends startTimer.
func (c *Client) StartTimer(ctx context.Context) error {
	return c.ack(ctx, dispatch.Message{Action: dispatch.ActionStartTimer})
}

// StopTimer sends stopTimer.
func (c *Client) StopTimer(ctx context.Context) error {
	return c.ack(ctx, dispatch.Message{Action: dispatch.ActionStopTimer})
}

// ResetTimer sends resetTimer.
func (c *Client) ResetTimer(ctx context.Context) error {
	return c.ack(ctx, dispatch.Message{Action: dispatch.ActionResetTimer})
}

// TimerState sends getTimerState.
func (c *Client) TimerState(ctx context.Context) (timer.State, error) {
	var st timer.State
	err := c.Send(ctx, dispatch.Message{Action: dispatch.ActionGetTimerState}, &st)
	return st, err
}

// UpdateReminderSettings sends updateReminderSettings.
func (c *Client) UpdateReminderSettings(ctx context.Context, s reminder.Settings) error {
	return c.ack(ctx, dispatch.Message{Action: dispatch.ActionUpdateReminderSettings, Settings: &s})
}

// GenerateSummary sends generateSummary and returns the summary text.
func (c *Client) GenerateSummary(ctx context.Context, notes, duration, apiKey, task, tabs string) (string, error) {
	var r dispatch.SummaryResult
	err := c.Send(ctx, dispatch.Message{
		Action:   dispatch.ActionGenerateSummary,
		Notes:    notes,
		Duration: duration,
		APIKey:   apiKey,
		Task:     task,
		Tabs:     tabs,
	}, &r)
	return r.Summary, err
}

// Events opens the push channel. The returned channel closes when the
// connection ends or ctx is done.
func (c *Client) Events(ctx context.Context) (<-chan broadcast.Event, error) {
	u, err := url.Parse(c.baseURL + "/api/events")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &Error{StatusCode: resp.StatusCode, Message: "missing or invalid token"}
		}
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}

	out := make(chan broadcast.Event, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var e broadcast.Event
			if err := conn.ReadJSON(&e); err != nil {
				return
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
