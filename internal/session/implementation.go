// internal/session/implementation.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bloodbank/internal/apperr"
	"bloodbank/internal/cache"
	"bloodbank/internal/config"
)

const maxTrackedClients = 10000

type claims struct {
	Role       Role   `json:"role"`
	HospitalID string `json:"hospital_id,omitempty"`
	jwt.RegisteredClaims
}

// service implements the Service interface.
type service struct {
	store     Store
	hospitals HospitalAuthenticator
	logger    *zap.Logger
	secret    []byte
	ttl       time.Duration
	adminHash string
	adminSalt string
	limiter   *loginLimiter
	now       func() time.Time
}

// NewService creates a new session service. The admin passkey is hashed once
// here and never kept in clear.
func NewService(store Store, hospitals HospitalAuthenticator, cfg config.AuthConfig, logger *zap.Logger) (Service, error) {
	hash, salt, err := HashPasskey(cfg.AdminPasskey)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin passkey: %w", err)
	}

	perMinute := cfg.LoginPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	burst := cfg.LoginBurst
	if burst <= 0 {
		burst = 5
	}

	return &service{
		store:     store,
		hospitals: hospitals,
		logger:    logger,
		secret:    []byte(cfg.JWTSecret),
		ttl:       cfg.SessionTTL,
		adminHash: hash,
		adminSalt: salt,
		limiter:   newLoginLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		now:       time.Now,
	}, nil
}

// Login verifies the credentials of either role and opens a session.
func (s *service) Login(ctx context.Context, clientKey string, req LoginRequest) (*Token, error) {
	if !s.limiter.allow(clientKey) {
		return nil, ErrTooManyAttempts
	}
	if strings.TrimSpace(req.Passkey) == "" {
		return nil, apperr.Invalidf("passkey is required")
	}

	sess := &Session{ID: uuid.NewString(), Role: req.Role}
	switch req.Role {
	case RoleAdmin:
		ok, err := VerifyPasskey(req.Passkey, s.adminSalt, s.adminHash)
		if err != nil {
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
		if !ok {
			s.logger.Warn("admin login rejected", zap.String("client", clientKey))
			return nil, ErrInvalidCredentials
		}
	case RoleHospital:
		if req.HospitalID == nil {
			return nil, apperr.Invalidf("hospital_id is required for hospital login")
		}
		if err := s.hospitals.Authenticate(ctx, *req.HospitalID, req.Passkey); err != nil {
			if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrUnauthorized) {
				s.logger.Warn("hospital login rejected",
					zap.String("client", clientKey),
					zap.Stringer("hospital_id", req.HospitalID),
				)
				return nil, ErrInvalidCredentials
			}
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
		id := *req.HospitalID
		sess.HospitalID = &id
	default:
		return nil, apperr.Invalidf("unknown role %q", req.Role)
	}

	now := s.now().UTC()
	sess.IssuedAt = now
	sess.ExpiresAt = now.Add(s.ttl)

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.store.SaveSession(ctx, sess.ID, data, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	c := claims{
		Role: sess.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   string(sess.Role),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	if sess.HospitalID != nil {
		c.HospitalID = sess.HospitalID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("session opened", zap.String("role", string(sess.Role)), zap.String("session_id", sess.ID))
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: sess.ExpiresAt, Session: sess}, nil
}

// Authenticate verifies the token signature and expiry and resolves the
// server-side session, which must still exist.
func (s *service) Authenticate(ctx context.Context, token string) (*Session, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	data, err := s.store.LoadSession(ctx, c.ID)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.ID != c.ID || sess.Role != c.Role {
		return nil, ErrInvalidToken
	}
	return &sess, nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, c.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("session closed", zap.String("session_id", c.ID))
	return nil
}

func (s *service) parse(token string) (*claims, error) {
	c := &claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, c, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || c.ID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// loginLimiter keeps one token bucket per client.
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func newLoginLimiter(every rate.Limit, burst int) *loginLimiter {
	return &loginLimiter{limiters: make(map[string]*rate.Limiter), every: every, burst: burst}
}

func (l *loginLimiter) allow(clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[clientKey]
	if !ok {
		if len(l.limiters) >= maxTrackedClients {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[clientKey] = lim
	}
	return lim.Allow()
}
