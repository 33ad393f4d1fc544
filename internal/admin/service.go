package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/numvault/numvault/internal/ledger"
	"github.com/numvault/numvault/internal/notification"
)

var (
	// ErrUnauthorized occurs when the caller is not an administrator or the
	// presented setup key does not match.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSetupDisabled occurs when admin bootstrap is attempted without a
	// configured setup key hash.
	ErrSetupDisabled = errors.New("admin setup is disabled")
)

// Service performs trusted-operator ledger operations. Every call is
// authorized against the caller's is_admin flag before touching state.
type Service struct {
	store        ledger.Store
	notifier     notification.Notifier
	setupKeyHash []byte
}

// NewService builds the admin service. setupKeyHash is the bcrypt hash used
// by PromoteAdmin; empty disables bootstrap.
func NewService(store ledger.Store, notifier notification.Notifier, setupKeyHash string) *Service {
	return &Service{store: store, notifier: notifier, setupKeyHash: []byte(setupKeyHash)}
}

// AdjustmentResult reports a balance change applied to a target user.
type AdjustmentResult struct {
	ExternalID string
	Handle     string
	Delta      int64
	Balance    int64
}

// Grant adds amount (any sign) to the target's balance.
func (s *Service) Grant(ctx context.Context, adminExternalID, targetRef string, amount int64) (AdjustmentResult, error) {
	if _, err := s.authorize(ctx, adminExternalID); err != nil {
		return AdjustmentResult{}, err
	}
	target, err := s.resolveTarget(ctx, targetRef)
	if err != nil {
		return AdjustmentResult{}, err
	}

	balance, err := s.store.AdjustCredits(ctx, target.ID, amount, ledger.ReasonAdminGrant, map[string]string{
		"admin_id":    adminExternalID,
		"description": fmt.Sprintf("admin granted %d credits", amount),
	})
	if err != nil {
		return AdjustmentResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindCreditsGranted,
			Destination: target.ExternalID,
			Body:        fmt.Sprintf("You received %d credits. New balance: %d", amount, balance),
		})
	}
	return AdjustmentResult{ExternalID: target.ExternalID, Handle: target.Handle, Delta: amount, Balance: balance}, nil
}

// SetBalance pins the target's balance to amount exactly, recording the
// difference as an admin_set_adjust entry. Zero and downward adjustments
// are valid.
func (s *Service) SetBalance(ctx context.Context, adminExternalID, targetRef string, amount int64) (AdjustmentResult, error) {
	if _, err := s.authorize(ctx, adminExternalID); err != nil {
		return AdjustmentResult{}, err
	}
	target, err := s.resolveTarget(ctx, targetRef)
	if err != nil {
		return AdjustmentResult{}, err
	}

	delta, balance, err := s.store.SetCredits(ctx, target.ID, amount, map[string]string{
		"admin_id":    adminExternalID,
		"description": fmt.Sprintf("admin set credits to %d", amount),
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	return AdjustmentResult{ExternalID: target.ExternalID, Handle: target.Handle, Delta: delta, Balance: balance}, nil
}

// UserBalance reads a target's balance on behalf of an administrator.
func (s *Service) UserBalance(ctx context.Context, adminExternalID, targetRef string) (ledger.User, error) {
	if _, err := s.authorize(ctx, adminExternalID); err != nil {
		return ledger.User{}, err
	}
	return s.resolveTarget(ctx, targetRef)
}

// Transactions returns a target's full credit trail.
func (s *Service) Transactions(ctx context.Context, adminExternalID, targetRef string) ([]ledger.CreditTransaction, error) {
	if _, err := s.authorize(ctx, adminExternalID); err != nil {
		return nil, err
	}
	target, err := s.resolveTarget(ctx, targetRef)
	if err != nil {
		return nil, err
	}
	return s.store.TransactionsForUser(ctx, target.ID)
}

// Reconcile compares a target's balance against their transaction log.
func (s *Service) Reconcile(ctx context.Context, adminExternalID, targetRef string) (ledger.ReconcileResult, error) {
	if _, err := s.authorize(ctx, adminExternalID); err != nil {
		return ledger.ReconcileResult{}, err
	}
	target, err := s.resolveTarget(ctx, targetRef)
	if err != nil {
		return ledger.ReconcileResult{}, err
	}
	return s.store.Reconcile(ctx, target.ID)
}

// AddNumber imports a number into the free pool.
func (s *Service) AddNumber(ctx context.Context, adminExternalID, phone, accessToken string) (ledger.Number, error) {
	if _, err := s.authorize(ctx, adminExternalID); err != nil {
		return ledger.Number{}, err
	}
	if phone == "" || accessToken == "" {
		return ledger.Number{}, fmt.Errorf("phone and access token are required")
	}
	return s.store.AddNumber(ctx, phone, accessToken)
}

// RetireNumber takes a number out of circulation.
func (s *Service) RetireNumber(ctx context.Context, adminExternalID, phone string) (ledger.Number, error) {
	if _, err := s.authorize(ctx, adminExternalID); err != nil {
		return ledger.Number{}, err
	}
	return s.store.RetireNumber(ctx, phone)
}

// Inventory summarizes the pool by status.
func (s *Service) Inventory(ctx context.Context, adminExternalID string) (ledger.InventoryCounts, error) {
	if _, err := s.authorize(ctx, adminExternalID); err != nil {
		return ledger.InventoryCounts{}, err
	}
	return s.store.Inventory(ctx)
}

// PromoteAdmin grants the administrator flag to a user presenting the
// deployment's setup key. How admin status is granted beyond this bootstrap
// is an operational concern outside the engine.
func (s *Service) PromoteAdmin(ctx context.Context, externalID, setupKey string) error {
	if len(s.setupKeyHash) == 0 {
		return ErrSetupDisabled
	}
	if err := bcrypt.CompareHashAndPassword(s.setupKeyHash, []byte(setupKey)); err != nil {
		return ErrUnauthorized
	}

	user, err := s.store.UserByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	return s.store.SetAdmin(ctx, user.ID, true)
}

func (s *Service) authorize(ctx context.Context, adminExternalID string) (ledger.User, error) {
	user, err := s.store.UserByExternalID(ctx, adminExternalID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			return ledger.User{}, ErrUnauthorized
		}
		return ledger.User{}, err
	}
	if !user.IsAdmin {
		return ledger.User{}, ErrUnauthorized
	}
	return user, nil
}

// resolveTarget accepts either "@handle" or an external id.
func (s *Service) resolveTarget(ctx context.Context, ref string) (ledger.User, error) {
	if strings.HasPrefix(ref, "@") {
		return s.store.UserByHandle(ctx, strings.TrimPrefix(ref, "@"))
	}
	return s.store.UserByExternalID(ctx, ref)
}
