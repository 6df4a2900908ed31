// Package notify delivers composed messages through the Fonnte
// WhatsApp gateway.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/adityarw/simep/internal/models"
)

// countryCode is the fixed gateway dialing prefix (Indonesia).
const countryCode = "62"

// FonnteClient posts form-encoded messages to the configured gateway
// endpoint. The HTTP client retries transient failures a couple of
// times within a bounded timeout; anything beyond that is the
// caller's (logged, swallowed) problem.
type FonnteClient struct {
	client *retryablehttp.Client
}

func NewFonnteClient() *FonnteClient {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 15 * time.Second
	c.Logger = nil
	return &FonnteClient{client: c}
}

// Send posts the message and reports acceptance. The gateway answers
// with a boolean-ish `status` field; anything not truthy is a
// rejection.
func (f *FonnteClient) Send(ctx context.Context, settings models.AppSettings, target, message string) error {
	if settings.WABaseURL == "" {
		return fmt.Errorf("fonnte: no gateway endpoint configured")
	}

	form := url.Values{}
	form.Set("target", target)
	form.Set("message", message)
	form.Set("countryCode", countryCode)

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", settings.WABaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("fonnte: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", settings.WAAPIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fonnte: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("fonnte: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fonnte: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	status := gjson.GetBytes(body, "status")
	if !status.Exists() || !status.Bool() {
		reason := gjson.GetBytes(body, "reason").String()
		if reason == "" {
			reason = strings.TrimSpace(string(body))
		}
		return fmt.Errorf("fonnte: gateway rejected message: %s", reason)
	}
	return nil
}
