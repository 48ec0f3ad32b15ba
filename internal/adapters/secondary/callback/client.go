// Package callback implements the outbound pgtUrl handshake performed while
// issuing a proxy-granting ticket.
package callback

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/auxoro/cas-server/internal/core/errors"
	"github.com/auxoro/cas-server/internal/core/ports"
)

// Client delivers the PGT and its IOU to the relying service's callback URL.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.ProxyCallback = (*Client)(nil)

// NewClient creates a callback client. timeout bounds the whole delivery,
// DNS and TLS handshake included.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Deliver appends pgtId and pgtIou to pgtURL's query string, preserving any
// parameters already present, and requires a 2xx answer. Any transport error
// or non-2xx status aborts PGT issuance.
func (c *Client) Deliver(ctx context.Context, pgtURL, pgtID, pgtIOU string) error {
	u, err := url.Parse(pgtURL)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrCallbackFailed, err)
	}
	if u.Scheme != "https" {
		return apperrors.ErrCallbackScheme
	}

	q := u.Query()
	q.Set("pgtId", pgtID)
	q.Set("pgtIou", pgtIOU)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrCallbackFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "proxy callback delivery failed", "pgt_url", pgtURL, "error", err)
		return fmt.Errorf("%w: %v", apperrors.ErrCallbackFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "proxy callback rejected", "pgt_url", pgtURL, "status", resp.StatusCode)
		return fmt.Errorf("%w: callback returned %d", apperrors.ErrCallbackFailed, resp.StatusCode)
	}
	return nil
}
