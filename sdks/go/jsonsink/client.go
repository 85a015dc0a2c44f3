package jsonsink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client posts raw payloads to a jsonsink server. Each Send becomes one entry.
type Client struct {
	URL   string
	Token string
	HTTP  *http.Client
}

// NewClient returns a client for the server at url.
func NewClient(url, token string) *Client {
	return &Client{
		URL:   strings.TrimRight(url, "/") + "/",
		Token: token,
		HTTP:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Send posts payload as-is. Any status other than 200 is an error.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
