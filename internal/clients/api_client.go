// internal/clients/api_client.go
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"bloodbank/internal/apperr"
	"bloodbank/internal/dashboard"
	"bloodbank/internal/httpx"
	"bloodbank/internal/inventory"
	"bloodbank/internal/session"
	"bloodbank/internal/transfusion"
)

// ErrCircuitOpen is returned while the breaker refuses calls to the API.
var ErrCircuitOpen = errors.New("blood bank api unavailable: circuit open")

// APIError is a non-2xx answer of the API. It unwraps to the apperr kind
// named by its code, so callers classify it with errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "not_found":
		return apperr.ErrNotFound
	case "invalid":
		return apperr.ErrInvalid
	case "conflict":
		return apperr.ErrConflict
	case "rule_violation":
		return apperr.ErrUnprocessable
	case "unauthorized":
		return apperr.ErrUnauthorized
	case "forbidden":
		return apperr.ErrForbidden
	case "rate_limited":
		return apperr.ErrRateLimited
	}
	return nil
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// APIClient calls the blood bank HTTP API through a circuit breaker. Only
// transport failures and 5xx answers count against the breaker.
type APIClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewAPIClient(cfg Config, logger *zap.Logger) *APIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL+"/api/v1").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bloodbank-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &APIClient{http: client, breaker: breaker, logger: logger}
}

// Login opens a session and authenticates every later call with it.
func (c *APIClient) Login(ctx context.Context, req session.LoginRequest) (*session.Token, error) {
	var token session.Token
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &token); err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	c.http.SetAuthToken(token.AccessToken)
	return &token, nil
}

// Summary fetches the per-type stock summary, optionally for one hospital.
func (c *APIClient) Summary(ctx context.Context, hospitalID *uuid.UUID) ([]inventory.Summary, error) {
	query := map[string]string{}
	if hospitalID != nil {
		query["hospital_id"] = hospitalID.String()
	}
	var summaries []inventory.Summary
	if err := c.do(ctx, http.MethodGet, "/inventory/summary", query, nil, &summaries); err != nil {
		return nil, fmt.Errorf("failed to fetch stock summary: %w", err)
	}
	return summaries, nil
}

func (c *APIClient) Stats(ctx context.Context) (*dashboard.Stats, error) {
	var stats dashboard.Stats
	if err := c.do(ctx, http.MethodGet, "/dashboard/stats", nil, nil, &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard stats: %w", err)
	}
	return &stats, nil
}

// RecordTransfusion posts a transfusion. A non-empty idempotencyKey is sent
// as the Idempotency-Key header.
func (c *APIClient) RecordTransfusion(ctx context.Context, req transfusion.RecordRequest, idempotencyKey string) (*transfusion.Transfusion, error) {
	var t transfusion.Transfusion
	r := c.http.R().SetContext(ctx).SetBody(req).SetResult(&t)
	if idempotencyKey != "" {
		r.SetHeader(transfusion.IdempotencyHeader, idempotencyKey)
	}
	if err := c.execute(r, http.MethodPost, "/transfusions"); err != nil {
		return nil, fmt.Errorf("failed to record transfusion: %w", err)
	}
	return &t, nil
}

func (c *APIClient) Candidates(ctx context.Context, unitID uuid.UUID) (*transfusion.Candidates, error) {
	var candidates transfusion.Candidates
	query := map[string]string{"inventory_id": unitID.String()}
	if err := c.do(ctx, http.MethodGet, "/transfusions/candidates", query, nil, &candidates); err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	return &candidates, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, query map[string]string, body, result any) error {
	r := c.http.R().SetContext(ctx).SetQueryParams(query).SetResult(result)
	if body != nil {
		r.SetBody(body)
	}
	return c.execute(r, method, path)
}

func (c *APIClient) execute(r *resty.Request, method, path string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var envelope httpx.ErrorResponse
		resp, err := r.SetError(&envelope).Execute(method, path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &APIError{Status: resp.StatusCode(), Code: envelope.Code, Message: envelope.Error}
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("api call refused by circuit breaker", zap.String("method", method), zap.String("path", path))
		return ErrCircuitOpen
	}
	return err
}

// State reports the breaker state, for diagnostics.
func (c *APIClient) State() gobreaker.State {
	return c.breaker.State()
}
