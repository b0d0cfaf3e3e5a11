// Package gateway is the client for the WhatsApp gateway API: outbound
// sends, media download, and instance discovery.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sender is the outbound surface used by the dispatcher.
type Sender interface {
	SendText(ctx context.Context, instanceID, phone, text string) error
	SendImage(ctx context.Context, instanceID, phone, imageURL, caption string) error
}

// MediaFetcher downloads inbound media referenced by a webhook event.
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, mediaURL string) (string, error)
}

// Client talks to an Evolution-style gateway over REST. All requests carry
// the gateway token in the apikey header.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendText sends a plain text message. The gateway shows a short typing
// presence before delivery.
func (c *Client) SendText(ctx context.Context, instanceID, phone, text string) error {
	body := map[string]interface{}{
		"number": phone,
		"options": map[string]interface{}{
			"delay":    1200,
			"presence": "composing",
		},
		"textMessage": map[string]string{
			"text": text,
		},
	}
	return c.post(ctx, "/message/sendText/"+instanceID, body)
}

// SendImage sends one image by URL, with an optional caption.
func (c *Client) SendImage(ctx context.Context, instanceID, phone, imageURL, caption string) error {
	media := map[string]interface{}{
		"mediatype": "image",
		"media":     imageURL,
	}
	if caption != "" {
		media["caption"] = caption
	}
	body := map[string]interface{}{
		"number": phone,
		"options": map[string]interface{}{
			"delay":    1200,
			"presence": "composing",
		},
		"mediaMessage": media,
	}
	return c.post(ctx, "/message/sendMedia/"+instanceID, body)
}

// DownloadMedia fetches inbound media by its gateway URL and returns it
// base64-encoded. The URL requires the same apikey header as API calls.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("media request: %w", err)
	}
	req.Header.Set("apikey", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download media: status %d", resp.StatusCode)
	}

	// WhatsApp voice notes and images stay well under this.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("read media: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// InstanceInfo is one connected instance as reported by the gateway.
type InstanceInfo struct {
	Name   string `json:"instanceName"`
	ID     string `json:"instanceId"`
	Status string `json:"status"`
}

// FetchInstances lists the instances known to the gateway.
func (c *Client) FetchInstances(ctx context.Context) ([]InstanceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/instance/fetchInstances", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch instances: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch instances: status %d: %s", resp.StatusCode, string(respBody))
	}

	var wrapped []struct {
		Instance InstanceInfo `json:"instance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("decode instances: %w", err)
	}
	result := make([]InstanceInfo, 0, len(wrapped))
	for _, w := range wrapped {
		result = append(result, w.Instance)
	}
	return result, nil
}

// Ping verifies connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.FetchInstances(ctx)
	return err
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}
