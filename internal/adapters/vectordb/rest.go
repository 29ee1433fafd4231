package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// restClient is the small JSON-over-HTTP helper shared by the Qdrant and
// Pinecone adapters.
type restClient struct {
	name       string
	baseURL    string
	authHeader string
	authValue  string
	client     *http.Client
}

func (c *restClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", c.name, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.authValue != "" {
		req.Header.Set(c.authHeader, c.authValue)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", c.name, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s %s failed: %s: %s", c.name, method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", c.name, err)
		}
	}
	return nil
}

// stringMetadata flattens a JSON payload into string values.
func stringMetadata(payload map[string]any) map[string]string {
	if payload == nil {
		return nil
	}
	meta := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			meta[k] = val
		case nil:
		default:
			meta[k] = fmt.Sprint(val)
		}
	}
	return meta
}
