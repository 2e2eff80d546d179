package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ArkeselClient sends SMS through the Arkesel v2 API.
type ArkeselClient struct {
	baseURL  string
	apiKey   string
	senderID string
	http     *http.Client
}

func NewArkeselClient(baseURL, apiKey, senderID string) *ArkeselClient {
	return &ArkeselClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		senderID: senderID,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	Sender     string   `json:"sender"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

type sendResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Send reports transport failures and non-2xx answers as errors.
func (c *ArkeselClient) Send(ctx context.Context, message string, recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no sms recipients")
	}
	body, err := json.Marshal(sendRequest{Sender: c.senderID, Message: message, Recipients: recipients})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/sms/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("arkesel request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("arkesel returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Status != "" && parsed.Status != "success" {
		return fmt.Errorf("arkesel status %q: %s", parsed.Status, parsed.Message)
	}
	return nil
}
