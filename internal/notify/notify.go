package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Notifier is the interface for sending sync availability notifications.
type Notifier interface {
	SendOutage(ctx context.Context, location string, lastErr error) error
	SendRecovery(ctx context.Context, location, method string, downFor time.Duration) error
}

// Client implements the ntfy notification client.
type Client struct {
	httpClient *http.Client
	config     *Config
	logger     *zap.Logger
}

// NewClient creates a new ntfy client.
func NewClient(cfg *Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

// SendOutage reports that both push and pull delivery are down for a location.
func (c *Client) SendOutage(ctx context.Context, location string, lastErr error) error {
	if !c.config.Enabled {
		return nil
	}

	title := fmt.Sprintf("Sync Unavailable: %s", location)
	message := FormatOutageMessage(location, lastErr)
	tags := c.config.Tags + ",x"
	priority := "high" // Override to high priority for outages

	return c.send(ctx, title, message, tags, priority)
}

// SendRecovery reports that updates are flowing again after an outage.
func (c *Client) SendRecovery(ctx context.Context, location, method string, downFor time.Duration) error {
	if !c.config.Enabled {
		return nil
	}

	title := fmt.Sprintf("Sync Restored: %s", location)
	message := FormatRecoveryMessage(location, method, downFor)
	tags := c.config.Tags + ",white_check_mark"

	return c.send(ctx, title, message, tags, c.config.Priority)
}

func (c *Client) send(ctx context.Context, title, message, tags, priority string) error {
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.config.Server, "/"), c.config.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)

	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to send notification", zap.Error(err))
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return fmt.Errorf("notification failed with status: %d", resp.StatusCode)
	}

	c.logger.Debug("notification sent", zap.String("title", title))
	return nil
}

// NoopNotifier is a no-op implementation for when notifications are disabled.
type NoopNotifier struct{}

// SendOutage is a no-op.
func (n *NoopNotifier) SendOutage(_ context.Context, _ string, _ error) error {
	return nil
}

// SendRecovery is a no-op.
func (n *NoopNotifier) SendRecovery(_ context.Context, _, _ string, _ time.Duration) error {
	return nil
}

// New creates the appropriate notifier based on config.
func New(cfg *Config, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return &NoopNotifier{}
	}
	return NewClient(cfg, logger)
}
