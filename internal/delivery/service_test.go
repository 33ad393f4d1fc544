package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/numvault/numvault/internal/ledger"
	"github.com/numvault/numvault/internal/ratelimit"
)

func setupFetchTest(t *testing.T, provider Provider) (ledger.Store, *Service, *time.Time) {
	t.Helper()

	store := ledger.NewMemory()
	limiter := ratelimit.NewMemoryLimiter(CodeCooldown)
	now := time.Now()
	ratelimit.SetClock(limiter, func() time.Time { return now })

	svc := NewService(store, provider, limiter, nil)
	return store, svc, &now
}

func TestFetchFullLifecycle(t *testing.T) {
	ctx := context.Background()
	store, svc, now := setupFetchTest(t, StaticProvider{Code: "483920"})

	user := ledger.SeedUser(store, "u-1", "alice", 1, false)
	if _, err := store.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	alloc, err := store.AllocateNumber(ctx, user.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// First fetch opens the cooldown window.
	res, err := svc.Fetch(ctx, alloc.AssignmentID, "u-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Code != "483920" || res.Phone != "+15550000001" {
		t.Fatalf("unexpected result %+v", res)
	}

	// A second request inside the window is rejected without provider work.
	*now = now.Add(3 * time.Second)
	_, err = svc.Fetch(ctx, alloc.AssignmentID, "u-1")
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if limited.RemainingSeconds() != 7 {
		t.Fatalf("expected 7 seconds remaining, got %d", limited.RemainingSeconds())
	}

	// After the window passes the fetch succeeds again.
	*now = now.Add(CodeCooldown)
	if _, err := svc.Fetch(ctx, alloc.AssignmentID, "u-1"); err != nil {
		t.Fatalf("fetch after cooldown: %v", err)
	}

	// The delivered code locked the assignment: no refund possible.
	if _, err := store.ReleaseAssignment(ctx, alloc.AssignmentID); !errors.Is(err, ledger.ErrNotRefundable) {
		t.Fatalf("expected ErrNotRefundable, got %v", err)
	}

	refreshed, _ := store.UserByExternalID(ctx, "u-1")
	if refreshed.Credits != 0 {
		t.Fatalf("balance changed by rejected release: %d", refreshed.Credits)
	}
	_, number, _ := store.AssignmentWithNumber(ctx, alloc.AssignmentID)
	if number.Status != ledger.NumberAssigned {
		t.Fatalf("number status changed: %s", number.Status)
	}
}

func TestFetchEmptyCodeKeepsAssignmentRefundable(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setupFetchTest(t, StaticProvider{Code: ""})

	user := ledger.SeedUser(store, "u-1", "", 1, false)
	if _, err := store.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	alloc, err := store.AllocateNumber(ctx, user.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := svc.Fetch(ctx, alloc.AssignmentID, "u-1"); !errors.Is(err, ErrNoCodeAvailable) {
		t.Fatalf("expected ErrNoCodeAvailable, got %v", err)
	}

	assignment, _, err := store.AssignmentWithNumber(ctx, alloc.AssignmentID)
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if assignment.State() != ledger.StateActive {
		t.Fatalf("assignment locked by empty code: %s", assignment.State())
	}

	if _, err := store.ReleaseAssignment(ctx, alloc.AssignmentID); err != nil {
		t.Fatalf("release after empty code: %v", err)
	}
}

func TestFetchProviderFailureMutatesNothing(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setupFetchTest(t, StaticProvider{Err: errors.New("connection refused")})

	user := ledger.SeedUser(store, "u-1", "", 1, false)
	if _, err := store.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	alloc, err := store.AllocateNumber(ctx, user.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := svc.Fetch(ctx, alloc.AssignmentID, "u-1"); !errors.Is(err, ErrDeliveryUnavailable) {
		t.Fatalf("expected ErrDeliveryUnavailable, got %v", err)
	}

	assignment, _, _ := store.AssignmentWithNumber(ctx, alloc.AssignmentID)
	if assignment.State() != ledger.StateActive {
		t.Fatalf("provider failure mutated state: %s", assignment.State())
	}
}

func TestFetchUnknownAssignment(t *testing.T) {
	_, svc, _ := setupFetchTest(t, StaticProvider{Code: "123456"})

	if _, err := svc.Fetch(context.Background(), "missing", "u-1"); !errors.Is(err, ledger.ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestFetchReleasedAssignmentRejected(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setupFetchTest(t, StaticProvider{Code: "123456"})

	user := ledger.SeedUser(store, "u-1", "", 1, false)
	if _, err := store.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	alloc, err := store.AllocateNumber(ctx, user.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := store.ReleaseAssignment(ctx, alloc.AssignmentID); err != nil {
		t.Fatalf("release: %v", err)
	}

	if _, err := svc.Fetch(ctx, alloc.AssignmentID, "u-1"); !errors.Is(err, ledger.ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound for released lease, got %v", err)
	}
}

func TestFetchDenialDoesNotExtendWindow(t *testing.T) {
	ctx := context.Background()
	store, svc, now := setupFetchTest(t, StaticProvider{Code: "123456"})

	user := ledger.SeedUser(store, "u-1", "", 1, false)
	if _, err := store.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	alloc, err := store.AllocateNumber(ctx, user.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := svc.Fetch(ctx, alloc.AssignmentID, "u-1"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	// Hammering inside the window must not push the deadline out.
	for i := 0; i < 3; i++ {
		*now = now.Add(2 * time.Second)
		if _, err := svc.Fetch(ctx, alloc.AssignmentID, "u-1"); err == nil {
			t.Fatalf("fetch %d unexpectedly allowed", i)
		}
	}
	*now = now.Add(4 * time.Second + time.Millisecond)
	if _, err := svc.Fetch(ctx, alloc.AssignmentID, "u-1"); err != nil {
		t.Fatalf("fetch after original window: %v", err)
	}
}
