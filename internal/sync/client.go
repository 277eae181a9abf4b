package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to a peer's sync server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a sync client for a peer at host:port. The token may
// be the peer's full token or its 6-digit connect code.
func NewClient(host string, port int, token string) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) ListStories(ctx context.Context) ([]StoryPreview, error) {
	resp, err := c.do(ctx, Action{Type: "listStories"})
	if err != nil {
		return nil, err
	}
	return resp.Stories, nil
}

// PullStory fetches a story export document from the peer.
func (c *Client) PullStory(ctx context.Context, storyID string) (string, error) {
	resp, err := c.do(ctx, Action{Type: "pullStory", StoryID: storyID})
	if err != nil {
		return "", err
	}
	return resp.Data, nil
}

// PushStory sends a story export document to the peer.
func (c *Client) PushStory(ctx context.Context, storyData string) error {
	_, err := c.do(ctx, Action{Type: "pushStory", StoryData: storyData})
	return err
}

func (c *Client) do(ctx context.Context, action Action) (*Response, error) {
	body, err := json.Marshal(Request{Token: c.token, Action: action})
	if err != nil {
		return nil, fmt.Errorf("marshaling sync request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating sync request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sync call: %w", err)
	}
	defer httpResp.Body.Close()

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding sync response: %w", err)
	}
	if resp.Type == "error" {
		return nil, fmt.Errorf("sync server: %s", resp.Message)
	}
	return &resp, nil
}
