// Package gradesync pushes grade-recalculation notices to an external grade
// book whenever a user's rated items change.
package gradesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrRejected is returned when the grade book refuses a notice.
var ErrRejected = errors.New("gradesync: notice rejected")

// Notice tells the grade book whose grade needs recalculating.
type Notice struct {
	Component string `json:"component"`
	ContextID int64  `json:"contextId"`
	UserID    int64  `json:"userId"`
}

// Client defines the contract for notifying the external grade book.
type Client interface {
	GradesChanged(ctx context.Context, component string, contextID, ratedUserID int64) error
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient constructs a new HTTP-backed grade book client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gradebook url: %w", err)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// GradesChanged posts a recalculation notice for one user.
func (c *HTTPClient) GradesChanged(ctx context.Context, component string, contextID, ratedUserID int64) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "/grades/recalculate"})

	payload, err := json.Marshal(Notice{Component: component, ContextID: contextID, UserID: ratedUserID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.logger.Warn("gradebook rejected notice",
			zap.Int("status", resp.StatusCode),
			zap.String("component", component),
			zap.Int64("userid", ratedUserID))
		return ErrRejected
	default:
		return fmt.Errorf("gradesync: upstream returned %d", resp.StatusCode)
	}
}
