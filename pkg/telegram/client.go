package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.telegram.org"
	defaultMaxRetries   uint64 = 3
	defaultRetryBackoff        = 500 * time.Millisecond
	responseReadLimit   int64  = 1024
	ParseModeMarkdown          = "Markdown"
)

var (
	errBotTokenRequired = errors.New("telegram bot token is required")
	errChatIDRequired   = errors.New("telegram chat id is required")
)

// Client posts messages through the Telegram Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chatID     string
	maxRetries uint64
	backoff    time.Duration
	// limiter paces outgoing requests; nil sends without pacing.
	limiter *rate.Limiter
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Bot API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRetry sets how many times a retryable failure is attempted again and
// the initial exponential backoff between attempts.
func WithRetry(maxRetries uint64, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithRateLimit paces requests to perMinute with the given burst. Telegram
// throttles bots that exceed about 20 messages a minute in one group chat.
func WithRateLimit(perMinute, burst int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), max(burst, 1))
	}
}

// NewClient builds a client bound to a bot token and destination chat.
func NewClient(token, chatID string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, errBotTokenRequired
	}
	trimmedChat := strings.TrimSpace(chatID)
	if trimmedChat == "" {
		return nil, errChatIDRequired
	}

	client := &Client{
		token:      trimmedToken,
		chatID:     trimmedChat,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: defaultMaxRetries,
		backoff:    defaultRetryBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// APIError is a non-200 answer from the Bot API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api status %d: %s", e.StatusCode, e.Description)
}

// Temporary reports whether a later attempt may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendMessage delivers text to the configured chat. Rate limits and server
// errors are retried with exponential backoff; other failures return at once.
func (c *Client) SendMessage(ctx context.Context, text, parseMode string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "telegram client not configured")
	}
	if strings.TrimSpace(text) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message text is required")
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: c.chatID, Text: text, ParseMode: parseMode})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal telegram message")
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.send(ctx, payload)
	})
}

func (c *Client) send(ctx context.Context, payload []byte) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "telegram rate limit wait")
		}
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.baseURL, "/"), c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute telegram request"))
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var decoded apiResponse
	_ = json.Unmarshal(body, &decoded)
	detail := strings.TrimSpace(decoded.Description)
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Description: detail}
	failure := pkgerrors.Wrap(pkgerrors.CodeDependency, apiErr, apiErr.Error())
	if apiErr.Temporary() {
		return retry.RetryableError(failure)
	}
	return failure
}
