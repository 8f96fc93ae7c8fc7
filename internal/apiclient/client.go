// Package apiclient предоставляет клиент удалённого REST API витрины.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL используется, если адрес API не задан в конфигурации.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// RequestIDHeader содержит идентификатор запроса для сопоставления логов.
const RequestIDHeader = "X-Request-ID"

// TokenSource отдаёт текущий токен авторизации. Пустая строка означает его отсутствие.
type TokenSource interface {
	Token() string
}

// Options задаёт параметры клиента.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit ограничивает число запросов в секунду; 0 снимает ограничение.
	RateLimit float64
	Logger    *zap.Logger
}

// Client инкапсулирует HTTP-взаимодействие с API витрины.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type retryKey struct{}

// NewClient создаёт клиент API. tokens может быть nil, тогда запросы уходят без авторизации.
func NewClient(opts Options, tokens TokenSource) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = opts.Timeout
	if rc.HTTPClient.Timeout <= 0 {
		rc.HTTPClient.Timeout = 10 * time.Second
	}
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = leveledLogger{s: logger.Sugar()}
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	return &Client{
		baseURL:    base,
		tokens:     tokens,
		httpClient: rc,
		limiter:    limiter,
		logger:     logger,
	}
}

// BaseURL возвращает нормализованный адрес API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call выполняет запрос к API и возвращает тело успешного ответа.
// Ошибки транспорта и ответы со статусом 4xx/5xx возвращаются как *APIError.
func (c *Client) Call(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &APIError{Message: DefaultErrorMessage, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	if idempotent(method) {
		ctx = context.WithValue(ctx, retryKey{}, true)
	}

	var raw interface{}
	if body != nil {
		raw = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, raw)
	if err != nil {
		return nil, &APIError{Message: DefaultErrorMessage, Err: fmt.Errorf("create request: %w", err)}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if resp == nil {
		c.logger.Warn("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, &APIError{Message: DefaultErrorMessage, Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	payload, readErr := io.ReadAll(resp.Body)

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newStatusError(resp.StatusCode, payload)
	}
	if readErr != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: DefaultErrorMessage, Err: fmt.Errorf("read response: %w", readErr)}
	}

	return payload, nil
}

// Get выполняет GET-запрос и декодирует JSON-ответ в out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	payload, err := c.Call(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decode(payload, out)
}

// Send отправляет in в виде JSON и декодирует ответ в out. in и out могут быть nil.
func (c *Client) Send(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	contentType := ""
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = encoded
		contentType = "application/json"
	}

	payload, err := c.Call(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return decode(payload, out)
}

// SendForm отправляет multipart-форму и декодирует ответ в out.
func (c *Client) SendForm(ctx context.Context, method, path string, form *Form, out any) error {
	body, contentType, err := form.encode()
	if err != nil {
		return fmt.Errorf("encode form: %w", err)
	}

	payload, err := c.Call(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return decode(payload, out)
}

func decode(payload []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &APIError{Message: DefaultErrorMessage, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// checkRetry повторяет только идемпотентные запросы.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if retry, _ := ctx.Value(retryKey{}).(bool); !retry {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
