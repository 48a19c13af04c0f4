package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"barberbot/internal/channels"
	"barberbot/internal/model"
)

const defaultHTTPTimeout = 10 * time.Second

// Client sends messages through the Graph API. It implements channels.Sender.
type Client struct {
	baseURL       string
	version       string
	phoneNumberID string
	accessToken   string
	httpClient    *http.Client
}

func NewClient(baseURL, version, phoneNumberID, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		version:       version,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Send(ctx context.Context, to, text string, buttons []model.Button) error {
	body, err := json.Marshal(BuildPayload(to, text, buttons))
	if err != nil {
		return fmt.Errorf("whatsapp: marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("whatsapp: read response: %w", err)
	}

	if resp.StatusCode/100 == 2 {
		return nil
	}
	sendErr := &channels.SendError{Channel: "whatsapp", Code: resp.StatusCode, Message: string(respBody)}
	var parsed sendResponse
	if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
		sendErr.Message = fmt.Sprintf("API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		sendErr.RetryAfter = time.Duration(s) * time.Second
	}
	return sendErr
}
