package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hypecast-live/hypecast/pkg/core/agent"
)

const defaultAPIBaseURL = "https://video.stream-io-api.com"

// Client is a narrow Stream Video REST client covering exactly the transport
// contract the orchestrator needs: upsert the agent user, create the call,
// and watch for the call ending. Media delivery itself is the edge's job.
type Client struct {
	issuer     *TokenIssuer
	httpClient *http.Client
	baseURL    string

	// pollInterval controls how often a joined connection checks whether the
	// call has ended.
	pollInterval time.Duration
}

func NewClient(issuer *TokenIssuer, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		issuer:       issuer,
		httpClient:   httpClient,
		baseURL:      defaultAPIBaseURL,
		pollInterval: 5 * time.Second,
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *Client) WithBaseURL(base string) *Client {
	if strings.TrimSpace(base) != "" {
		c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
	return c
}

// WithPollInterval overrides the call-ended poll cadence, for tests.
func (c *Client) WithPollInterval(d time.Duration) *Client {
	if d > 0 {
		c.pollInterval = d
	}
	return c
}

func (c *Client) CreateUser(ctx context.Context, userID, name string) error {
	body := map[string]any{
		"users": map[string]any{
			userID: map[string]any{"id": userID, "name": name},
		},
	}
	return c.do(ctx, http.MethodPost, "/api/v2/users", body, nil)
}

func (c *Client) CreateCall(ctx context.Context, callType, callID string) (agent.Call, error) {
	path := fmt.Sprintf("/api/v2/video/call/%s/%s", url.PathEscape(callType), url.PathEscape(callID))
	body := map[string]any{
		"data": map[string]any{
			"created_by_id": "hypecast-agent",
		},
	}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return nil, err
	}
	return &call{client: c, callType: callType, callID: callID}, nil
}

type call struct {
	client   *Client
	callType string
	callID   string
}

func (cl *call) Join(ctx context.Context) (agent.Connection, error) {
	// Confirm the call is reachable before reporting a joined connection.
	if _, err := cl.client.getCallState(ctx, cl.callType, cl.callID); err != nil {
		return nil, err
	}
	connCtx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		client:   cl.client,
		callType: cl.callType,
		callID:   cl.callID,
		ended:    make(chan struct{}),
		cancel:   cancel,
	}
	go conn.watch(connCtx)
	return conn, nil
}

type connection struct {
	client   *Client
	callType string
	callID   string
	ended    chan struct{}
	cancel   context.CancelFunc
}

func (c *connection) Ended() <-chan struct{} { return c.ended }

func (c *connection) Leave(ctx context.Context) error {
	c.cancel()
	return nil
}

// watch polls call state until ended_at is set, then fires the ended signal.
func (c *connection) watch(ctx context.Context) {
	ticker := time.NewTicker(c.client.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := c.client.getCallState(ctx, c.callType, c.callID)
			if err != nil {
				continue
			}
			if state.Call.EndedAt != nil {
				close(c.ended)
				return
			}
		}
	}
}

type callStateResponse struct {
	Call struct {
		EndedAt *time.Time `json:"ended_at"`
	} `json:"call"`
}

func (c *Client) getCallState(ctx context.Context, callType, callID string) (*callStateResponse, error) {
	path := fmt.Sprintf("/api/v2/video/call/%s/%s", url.PathEscape(callType), url.PathEscape(callID))
	var out callStateResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.issuer.Configured() {
		return ErrNotConfigured
	}
	serverToken, err := c.issuer.UserToken("hypecast-server", time.Time{})
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path + "?api_key=" + url.QueryEscape(c.issuer.APIKey)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", serverToken)
	req.Header.Set("stream-auth-type", "jwt")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stream api %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode stream api response: %w", err)
		}
	}
	return nil
}
