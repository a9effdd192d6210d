package control

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"codeberg.org/mutker/monitornap/internal/engine"
	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

// The host is ignored by the unix dialer.
const baseURL = "http://monitornap"

// Client talks to a running daemon over its control socket.
type Client struct {
	http *http.Client
	base string
}

func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	return &Client{
		http: &http.Client{
			Timeout: requestTimeout + time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
			},
		},
		base: baseURL,
	}
}

// newHTTPClient points a client at an ordinary HTTP server.
func newHTTPClient(hc *http.Client, base string) *Client {
	return &Client{http: hc, base: base}
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	return c.do(ctx, http.MethodGet, "/v1/status", nil)
}

func (c *Client) Nap(ctx context.Context) (Status, error) {
	return c.do(ctx, http.MethodPost, "/v1/nap", nil)
}

func (c *Client) Resume(ctx context.Context) (Status, error) {
	return c.do(ctx, http.MethodPost, "/v1/resume", nil)
}

func (c *Client) Pause(ctx context.Context, minutes int) (Status, error) {
	return c.do(ctx, http.MethodPost, "/v1/pause", pauseRequest{Minutes: minutes})
}

func (c *Client) CancelPause(ctx context.Context) (Status, error) {
	return c.do(ctx, http.MethodDelete, "/v1/pause", nil)
}

func (c *Client) ToggleAwake(ctx context.Context) (Status, error) {
	return c.do(ctx, http.MethodPost, "/v1/awake", nil)
}

func (c *Client) SetAwake(ctx context.Context, enabled bool) (Status, error) {
	return c.do(ctx, http.MethodPut, "/v1/awake", awakeRequest{Enabled: enabled})
}

func (c *Client) Identify(ctx context.Context, id monitor.ID) (Status, error) {
	return c.do(ctx, http.MethodPost, "/v1/monitors/"+url.PathEscape(string(id))+"/identify", nil)
}

func (c *Client) UpdateGlobalSettings(ctx context.Context, update engine.GlobalSettingsUpdate) (Status, error) {
	return c.do(ctx, http.MethodPut, "/v1/settings", update)
}

func (c *Client) UpdateMonitorSettings(ctx context.Context, id monitor.ID, settings monitor.Settings) (Status, error) {
	return c.do(ctx, http.MethodPut, "/v1/monitors/"+url.PathEscape(string(id))+"/settings", settings)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (Status, error) {
	errFactory := errors.New()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return Status{}, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return Status{}, errFactory.Wrap(errors.ErrInternal, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, errFactory.Wrap(ErrDaemonNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error.Code == "" {
			return Status{}, errFactory.WithData(ErrBadResponse, resp.Status)
		}
		return Status{}, errFactory.WithMessage(eb.Error.Code, eb.Error.Message)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, errFactory.Wrap(ErrBadResponse, err)
	}
	return st, nil
}
