package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/numvault/numvault/internal/ledger"
	"github.com/numvault/numvault/internal/notification"
	"github.com/numvault/numvault/internal/ratelimit"
)

// CodeCooldown is the fixed per-user wait between code requests.
const CodeCooldown = 10 * time.Second

var (
	// ErrNoCodeAvailable means the provider answered but no code has
	// arrived yet. The assignment stays refundable.
	ErrNoCodeAvailable = errors.New("no code available")

	// ErrDeliveryUnavailable means the provider could not be reached or
	// answered with an error. Transient; the caller may retry.
	ErrDeliveryUnavailable = errors.New("delivery provider unavailable")
)

// RateLimitedError reports a code request inside the cooldown window.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.Remaining)
}

// RemainingSeconds rounds the wait up to whole seconds for rendering.
func (e *RateLimitedError) RemainingSeconds() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}

// CodeResult is a successfully delivered code.
type CodeResult struct {
	AssignmentID string
	Phone        string
	Code         string
	FetchedAt    time.Time
}

// Service coordinates code retrieval: cooldown, provider call, and the
// commit that makes the assignment non-refundable.
type Service struct {
	store    ledger.Store
	provider Provider
	limiter  ratelimit.Limiter
	notifier notification.Notifier
}

// NewService builds the code delivery coordinator.
func NewService(store ledger.Store, provider Provider, limiter ratelimit.Limiter, notifier notification.Notifier) *Service {
	return &Service{store: store, provider: provider, limiter: limiter, notifier: notifier}
}

// Fetch pulls the current code for an assignment on behalf of a user.
// Once a non-empty code comes back from the provider the locked state is
// committed even if the caller has gone away: the SMS was consumed and
// cannot be un-fetched.
func (s *Service) Fetch(ctx context.Context, assignmentID, userExternalID string) (CodeResult, error) {
	remaining, ok, err := s.limiter.Reserve(ctx, userExternalID)
	if err == nil && !ok {
		return CodeResult{}, &RateLimitedError{Remaining: remaining}
	}
	// The cooldown is advisory; a broken limiter backend never blocks
	// delivery.

	assignment, number, err := s.store.AssignmentWithNumber(ctx, assignmentID)
	if err != nil {
		return CodeResult{}, err
	}
	if assignment.State() == ledger.StateReleased {
		return CodeResult{}, ledger.ErrAssignmentNotFound
	}

	code, err := s.provider.FetchCode(ctx, number.AccessToken)
	if err != nil {
		return CodeResult{}, fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}
	if code == "" {
		return CodeResult{}, ErrNoCodeAvailable
	}

	locked, err := s.store.LockCode(context.WithoutCancel(ctx), assignmentID, code)
	if err != nil {
		return CodeResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindCodeDelivered,
			Destination: userExternalID,
			Body:        fmt.Sprintf("Code delivered for %s", number.Phone),
		})
	}

	result := CodeResult{
		AssignmentID: assignmentID,
		Phone:        number.Phone,
		Code:         code,
	}
	if locked.CodeFetchedAt != nil {
		result.FetchedAt = *locked.CodeFetchedAt
	}
	return result, nil
}
