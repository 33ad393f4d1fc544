package pool

import (
	"context"
	"fmt"

	"github.com/numvault/numvault/internal/ledger"
	"github.com/numvault/numvault/internal/notification"
)

// Service exposes the allocation and release engines over the ledger store.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
}

// NewService builds a pool service instance.
func NewService(store ledger.Store, notifier notification.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// SyncUser resolves or creates the user for an external identity, returning
// the current balance.
func (s *Service) SyncUser(ctx context.Context, externalID, handle string) (ledger.User, error) {
	return s.store.EnsureUser(ctx, externalID, handle)
}

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, externalID string) (int64, error) {
	user, err := s.store.UserByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// Allocate leases a free number to the user, debiting one credit. The user
// is created on first contact; a brand-new user therefore fails with
// insufficient credits rather than not-found. A commit conflict from a
// concurrent allocation is retried once against the updated pool state.
func (s *Service) Allocate(ctx context.Context, externalID string) (ledger.AllocationResult, error) {
	user, err := s.store.EnsureUser(ctx, externalID, "")
	if err != nil {
		return ledger.AllocationResult{}, err
	}

	res, err := s.store.AllocateNumber(ctx, user.ID)
	if err != nil && ledger.IsConflict(err) {
		res, err = s.store.AllocateNumber(ctx, user.ID)
	}
	if err != nil {
		return ledger.AllocationResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindNumberAssigned,
			Destination: externalID,
			Body:        fmt.Sprintf("Assigned number %s", res.Phone),
		})
	}
	return res, nil
}

// Release refunds an active lease that has not yet had a code delivered.
func (s *Service) Release(ctx context.Context, assignmentID string) (ledger.ReleaseResult, error) {
	res, err := s.store.ReleaseAssignment(ctx, assignmentID)
	if err != nil {
		return ledger.ReleaseResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindNumberReleased,
			Destination: res.UserExternalID,
			Body:        fmt.Sprintf("Number %s released, %d credit refunded", res.Phone, res.Refunded),
		})
	}
	return res, nil
}

// ActiveNumbers lists the user's live leases.
func (s *Service) ActiveNumbers(ctx context.Context, externalID string) ([]ledger.ActiveNumber, error) {
	user, err := s.store.UserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.store.ActiveAssignments(ctx, user.ID)
}
