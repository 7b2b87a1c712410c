package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Jackyzaz/motegao/internal/domain"
)

// apiClient talks to the motegao HTTP API.
type apiClient struct {
	base *url.URL
	http *http.Client
}

func newAPIClient(base string, hc *http.Client) (*apiClient, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", base)
	}
	return &apiClient{base: u, http: hc}, nil
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) submit(ctx context.Context, command string, body any) (*domain.SubmitResponse, error) {
	var resp domain.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/commands/"+command, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) status(ctx context.Context, id uuid.UUID) (*domain.JobState, error) {
	var st domain.JobState
	if err := c.do(ctx, http.MethodGet, "/api/v1/commands/"+id.String(), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *apiClient) cancel(ctx context.Context, id uuid.UUID) (*domain.JobState, error) {
	var st domain.JobState
	if err := c.do(ctx, http.MethodPost, "/api/v1/commands/"+id.String()+"/cancel", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// watch streams state updates until the job is terminal or ctx is done.
func (c *apiClient) watch(ctx context.Context, id uuid.UUID, emit func(*domain.JobState) error) error {
	u := *c.base
	u.Scheme = map[string]string{"http": "ws", "https": "wss"}[u.Scheme]
	u.Path += "/api/v1/commands/" + id.String() + "/stream"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return &apiError{Status: resp.StatusCode, Message: "stream rejected"}
		}
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var st domain.JobState
		if err := conn.ReadJSON(&st); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if st.Status == "" {
			return fmt.Errorf("stream interrupted by server")
		}
		if err := emit(&st); err != nil {
			return err
		}
		if st.Status.IsTerminal() {
			return nil
		}
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
