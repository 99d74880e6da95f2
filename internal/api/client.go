package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediaferry/internal/queue"
)

// ErrAPIUnavailable reports that no daemon answered.
var ErrAPIUnavailable = errors.New("admin API unavailable")

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("admin API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("admin API returned status %d: %s", e.StatusCode, e.Message)
}

// AdminClient calls the daemon's admin API.
type AdminClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewAdminClient targets bind, a host:port or URL. An empty bind yields a
// nil client whose calls return ErrAPIUnavailable.
func NewAdminClient(bind, token string) (*AdminClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &AdminClient{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Status fetches GET /api/status.
func (c *AdminClient) Status(ctx context.Context) (DaemonStatus, error) {
	var status DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// TaskManager fetches GET /taskmanager.
func (c *AdminClient) TaskManager(ctx context.Context, fields []string, statuses ...queue.Status) (TaskManagerView, error) {
	values := url.Values{}
	if len(fields) > 0 {
		values.Set("fields", strings.Join(fields, ","))
	}
	for _, status := range statuses {
		values.Add("status", string(status))
	}
	var view TaskManagerView
	err := c.do(ctx, http.MethodGet, "/taskmanager", values, &view)
	return view, err
}

// Task calls GET /taskmanager/task/{id}.
func (c *AdminClient) Task(ctx context.Context, id int64) (Task, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodGet, "/taskmanager/task/"+strconv.FormatInt(id, 10), nil, &resp)
	return resp.Task, err
}

// CancelTask calls DELETE /taskmanager/task/{id}.
func (c *AdminClient) CancelTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/taskmanager/task/"+strconv.FormatInt(id, 10), nil, nil)
}

// StartTask calls POST /taskmanager/task/{id}.
func (c *AdminClient) StartTask(ctx context.Context, id int64) (Task, error) {
	var resp TaskResponse
	err := c.do(ctx, http.MethodPost, "/taskmanager/task/"+strconv.FormatInt(id, 10), nil, &resp)
	return resp.Task, err
}

// ClearCompleted calls DELETE /taskmanager/completed.
func (c *AdminClient) ClearCompleted(ctx context.Context) (int64, error) {
	var resp ClearResponse
	err := c.do(ctx, http.MethodDelete, "/taskmanager/completed", nil, &resp)
	return resp.Removed, err
}

// KickSocket calls DELETE /taskmanager/socket/{id}.
func (c *AdminClient) KickSocket(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/taskmanager/socket/"+url.PathEscape(id), nil, nil)
}

func (c *AdminClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var payload ErrorResponse
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsAPIUnavailable reports whether err means the daemon is not reachable.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
