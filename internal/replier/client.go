package replier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"social-autopilot/internal/config"
	"social-autopilot/internal/metrics"
)

// Fallback replies, used when the inference endpoint cannot produce one.
const (
	FallbackUnavailable = "Sorry, I couldn't generate a reply right now."
	FallbackEmpty       = "No reply generated."
	FallbackFailure     = "Oops, something went wrong while generating the reply."
)

// DefaultUserAgent identifies the service to the inference endpoint.
const DefaultUserAgent = "social-autopilot/1.0"

// Replier produces a reply for a comment or message.
type Replier interface {
	Reply(ctx context.Context, text string) (string, error)
}

// Client calls a text-generation inference endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewClient builds a client from cfg. m may be nil.
func NewClient(cfg config.ReplierConfig, m *metrics.Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		metrics:  m,
		logger:   logger.Named("replier"),
	}
}

type request struct {
	Inputs string `json:"inputs"`
}

// Prompt wraps text in the instruction sent to the model.
func Prompt(text string) string {
	return `Reply politely to this message: "` + text + `"`
}

// Reply returns generated text, or one of the fallbacks when generation fails.
// The error is non-nil only when ctx ends first.
func (c *Client) Reply(ctx context.Context, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	body, err := c.post(ctx, request{Inputs: Prompt(text)})
	c.metrics.Reply(time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Error("reply generation failed", zap.Error(err))
		return FallbackFailure, nil
	}

	reply, err := ParseGenerated(body)
	if err != nil {
		c.logger.Error("reply generation failed", zap.Error(err))
		return FallbackFailure, nil
	}
	return reply, nil
}

func (c *Client) post(ctx context.Context, payload request) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
