package mailer

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/anhtuan9622/flippl/internal/config"
)

// Client delivers transactional auth emails through an HTTP mail API.
// Requests are rate limited and retried with exponential backoff.
type Client struct {
	client  *resty.Client
	apiKey  string
	from    string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewClient creates a mail API client from configuration.
func NewClient(cfg *config.Mailer, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		logger:  logger,
		limiter: limiter,
	}
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SendMagicLink mails a one-time sign-in link.
func (c *Client) SendMagicLink(ctx context.Context, email, link string) error {
	return c.send(ctx, message{
		From:    c.from,
		To:      email,
		Subject: "Sign in to Flippl",
		Text:    "Follow this link to sign in to your trading journal: " + link,
	})
}

// SendPasswordReset mails a one-time password-reset link.
func (c *Client) SendPasswordReset(ctx context.Context, email, link string) error {
	return c.send(ctx, message{
		From:    c.from,
		To:      email,
		Subject: "Reset your Flippl password",
		Text:    "Follow this link to choose a new password: " + link,
	})
}

// SendEmailChange mails a confirmation link to the new address.
func (c *Client) SendEmailChange(ctx context.Context, email, link string) error {
	return c.send(ctx, message{
		From:    c.from,
		To:      email,
		Subject: "Confirm your new Flippl email",
		Text:    "Follow this link to confirm this address for your account: " + link,
	})
}

func (c *Client) send(ctx context.Context, msg message) error {
	// Without an API key the client runs in log-only mode, which keeps
	// local setups working without a mail provider.
	if c.apiKey == "" {
		c.logger.Info("Mail delivery skipped (no API key configured)",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.String("text", msg.Text),
		)
		return nil
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(msg)

	if _, err := c.doRequest(ctx, http.MethodPost, "/messages", req); err != nil {
		c.logger.Error("Failed to deliver email",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("failed to deliver email: %w", err)
	}
	return nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.StatusCode() != 0 {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
