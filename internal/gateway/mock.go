package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrGatewayUnavailable is returned for simulated gateway outages.
	ErrGatewayUnavailable = errors.New("gateway temporarily unavailable")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrUnknownReference   = errors.New("unknown authorization reference")
	ErrAlreadyCaptured    = errors.New("authorization already captured")
)

// Gateway represents the external payment gateway interface.
type Gateway interface {
	// PreAuthorize reserves funds and returns a reference for a later Capture.
	PreAuthorize(ctx context.Context, req PreAuthRequest) (PreAuthResult, error)
	// Capture settles a previous authorization.
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
}

type PreAuthRequest struct {
	Amount      domain.Money
	Description string
}

type PreAuthResult struct {
	Reference    string
	Amount       domain.Money
	AuthorizedAt time.Time
}

type CaptureRequest struct {
	Reference string
}

type CaptureResult struct {
	Reference  string
	Amount     domain.Money
	CapturedAt time.Time
}

type authorization struct {
	amount   domain.Money
	captured bool
}

// MockGateway simulates an external payment gateway.
// By default it sleeps 2-5 seconds per call and fails ~10% of the time.
type MockGateway struct {
	// FailureRate is the probability of failure (0.0 to 1.0). Default: 0.1 (10%)
	FailureRate float64
	// MinDelay and MaxDelay bound the simulated latency. Both zero disables it.
	MinDelay time.Duration
	MaxDelay time.Duration

	mu    sync.Mutex
	auths map[string]*authorization
	rnd   *rand.Rand
	now   func() time.Time
}

// NewMockGateway creates a new MockGateway with default settings.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		FailureRate: 0.1,
		MinDelay:    2 * time.Second,
		MaxDelay:    5 * time.Second,
		auths:       make(map[string]*authorization),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// WithoutLatency disables the simulated delay.
func (g *MockGateway) WithoutLatency() *MockGateway {
	g.MinDelay, g.MaxDelay = 0, 0
	return g
}

// WithFailureRate sets the simulated failure probability, clamped to [0, 1].
func (g *MockGateway) WithFailureRate(rate float64) *MockGateway {
	g.FailureRate = min(max(rate, 0), 1)
	return g
}

// PreAuthorize validates the amount and currency, then issues a MOCK- reference.
func (g *MockGateway) PreAuthorize(ctx context.Context, req PreAuthRequest) (PreAuthResult, error) {
	if !req.Amount.Currency.Valid() {
		return PreAuthResult{}, fmt.Errorf("preauthorize %q: %w", req.Amount.Currency, domain.ErrUnsupportedCurrency)
	}
	if !req.Amount.IsPositive() {
		return PreAuthResult{}, fmt.Errorf("preauthorize: %w", ErrInvalidAmount)
	}
	if err := g.simulate(ctx, "preauthorize"); err != nil {
		return PreAuthResult{}, err
	}

	// Format: MOCK-YYYYMMDD-HHMMSS-XXXXXXXX
	now := g.now().UTC()
	ref := fmt.Sprintf("MOCK-%s-%s", now.Format("20060102-150405"),
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]))

	g.mu.Lock()
	g.auths[ref] = &authorization{amount: req.Amount}
	g.mu.Unlock()

	zap.L().Debug("mock gateway authorized", zap.String("reference", ref), zap.String("amount", req.Amount.String()))
	return PreAuthResult{Reference: ref, Amount: req.Amount, AuthorizedAt: now}, nil
}

// Capture settles an authorization issued by this gateway. Each reference can be captured once.
func (g *MockGateway) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	g.mu.Lock()
	auth, ok := g.auths[req.Reference]
	g.mu.Unlock()
	if !ok {
		return CaptureResult{}, fmt.Errorf("capture %q: %w", req.Reference, ErrUnknownReference)
	}

	if err := g.simulate(ctx, "capture"); err != nil {
		return CaptureResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if auth.captured {
		return CaptureResult{}, fmt.Errorf("capture %q: %w", req.Reference, ErrAlreadyCaptured)
	}
	auth.captured = true
	return CaptureResult{Reference: req.Reference, Amount: auth.amount, CapturedAt: g.now().UTC()}, nil
}

// simulate sleeps for the configured latency, then randomly fails based on FailureRate.
func (g *MockGateway) simulate(ctx context.Context, op string) error {
	g.mu.Lock()
	delay := g.MinDelay
	if spread := g.MaxDelay - g.MinDelay; spread > 0 {
		delay += time.Duration(g.rnd.Int63n(int64(spread)))
	}
	fail := g.rnd.Float64() < g.FailureRate
	g.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("gateway call canceled: %w", ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return fmt.Errorf("gateway call canceled: %w", err)
	}

	if fail {
		zap.L().Warn("mock gateway simulated failure", zap.String("op", op))
		return fmt.Errorf("%s: %w", op, ErrGatewayUnavailable)
	}
	return nil
}
