package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"climate_hub/internal/models"
)

const defaultHTTPTimeout = 15 * time.Second

// RESTClient talks to the cloud's request/response API.
type RESTClient struct {
	baseURL string
	client  *http.Client
}

// NewRESTClient builds a client for the given base URL.
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &RESTClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListDeviceIDs fetches the account's device set.
func (c *RESTClient) ListDeviceIDs(ctx context.Context, tok Token) ([]string, error) {
	var resp struct {
		DeviceIDs []string `json:"device_ids"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/devices", tok, nil, &resp); err != nil {
		return nil, err
	}
	return resp.DeviceIDs, nil
}

// FetchDevice retrieves a full snapshot for one device.
func (c *RESTClient) FetchDevice(ctx context.Context, deviceID string, tok Token) (models.Device, error) {
	var dto deviceJSON
	if err := c.doJSON(ctx, http.MethodGet, "/v1/devices/"+deviceID, tok, nil, &dto); err != nil {
		return models.Device{}, err
	}
	dev := dto.toModel()
	if dev.ID == "" {
		dev.ID = deviceID
	}
	return dev, nil
}

// SendCommand delivers a command to a legacy-class device.
func (c *RESTClient) SendCommand(ctx context.Context, deviceID string, tok Token, cmd models.Command) error {
	body := commandToJSON(cmd)
	return c.doJSON(ctx, http.MethodPost, "/v1/devices/"+deviceID+"/command", tok, body, nil)
}

// doJSON runs one request with bearer auth, encoding in and decoding out
// when non-nil. 401 maps to ErrAuthExpired so callers can refresh.
func (c *RESTClient) doJSON(ctx context.Context, method, path string, tok Token, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return models.ErrAuthExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
