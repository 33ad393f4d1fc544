package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryStoreAllocateDebitsAndRecords(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "alice", 2, false)
	if _, err := s.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}

	res, err := s.AllocateNumber(ctx, user.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.Phone != "+15550000001" {
		t.Fatalf("unexpected phone %s", res.Phone)
	}
	if res.Balance != 1 {
		t.Fatalf("expected balance 1, got %d", res.Balance)
	}

	txs, err := s.TransactionsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	last := txs[len(txs)-1]
	if last.Delta != -1 || last.Reason != ReasonGetAccount {
		t.Fatalf("expected get_account debit, got delta=%d reason=%s", last.Delta, last.Reason)
	}
	if last.AssignmentID != res.AssignmentID {
		t.Fatalf("debit not linked to assignment")
	}

	rec, err := s.Reconcile(ctx, user.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Balanced {
		t.Fatalf("ledger out of balance: credits=%d sum=%d", rec.Credits, rec.TransactionSum)
	}

	assignment, number, err := s.AssignmentWithNumber(ctx, res.AssignmentID)
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if assignment.State() != StateActive {
		t.Fatalf("expected active state, got %s", assignment.State())
	}
	if number.Status != NumberAssigned {
		t.Fatalf("expected number assigned, got %s", number.Status)
	}
}

func TestMemoryStoreAllocateInsufficientCredits(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "", 0, false)
	if _, err := s.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}

	if _, err := s.AllocateNumber(ctx, user.ID); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	// No partial mutation may survive the failed attempt.
	inv, err := s.Inventory(ctx)
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if inv.Free != 1 || inv.Assigned != 0 {
		t.Fatalf("pool mutated: %+v", inv)
	}
	txs, _ := s.TransactionsForUser(ctx, user.ID)
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestMemoryStoreAllocateNoNumberAvailable(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "", 3, false)
	if _, err := s.AllocateNumber(ctx, user.ID); !errors.Is(err, ErrNoNumberAvailable) {
		t.Fatalf("expected ErrNoNumberAvailable, got %v", err)
	}

	refreshed, err := s.UserByExternalID(ctx, "u-1")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if refreshed.Credits != 3 {
		t.Fatalf("balance mutated to %d", refreshed.Credits)
	}
}

func TestMemoryStoreRetiredNumbersNeverAllocated(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "", 1, false)
	if _, err := s.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	if _, err := s.RetireNumber(ctx, "+15550000001"); err != nil {
		t.Fatalf("retire: %v", err)
	}

	if _, err := s.AllocateNumber(ctx, user.ID); !errors.Is(err, ErrNoNumberAvailable) {
		t.Fatalf("expected ErrNoNumberAvailable, got %v", err)
	}
}

func TestMemoryStoreReleaseRefundsAndArchives(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "alice", 1, false)
	if _, err := s.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}

	alloc, err := s.AllocateNumber(ctx, user.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	rel, err := s.ReleaseAssignment(ctx, alloc.AssignmentID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if rel.Balance != 1 {
		t.Fatalf("expected balance restored to 1, got %d", rel.Balance)
	}
	if rel.UserExternalID != "u-1" {
		t.Fatalf("unexpected owner %s", rel.UserExternalID)
	}

	assignment, number, err := s.AssignmentWithNumber(ctx, alloc.AssignmentID)
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if assignment.State() != StateReleased {
		t.Fatalf("expected released state, got %s", assignment.State())
	}
	if assignment.ReleasedAt == nil {
		t.Fatal("released_at not set")
	}
	if number.Status != NumberFree {
		t.Fatalf("number not freed: %s", number.Status)
	}

	rec, _ := s.Reconcile(ctx, user.ID)
	if !rec.Balanced {
		t.Fatalf("ledger out of balance after release: %+v", rec)
	}

	archived := ArchivedAssignments(s)
	if len(archived) != 1 || archived[0].ID != alloc.AssignmentID {
		t.Fatalf("expected archived copy of %s, got %+v", alloc.AssignmentID, archived)
	}

	// A released assignment is terminal.
	if _, err := s.ReleaseAssignment(ctx, alloc.AssignmentID); !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound on double release, got %v", err)
	}
}

func TestMemoryStoreLockCodeBlocksRelease(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "", 1, false)
	if _, err := s.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	alloc, err := s.AllocateNumber(ctx, user.ID)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	locked, err := s.LockCode(ctx, alloc.AssignmentID, "483920")
	if err != nil {
		t.Fatalf("lock code: %v", err)
	}
	if locked.State() != StateCodeLocked {
		t.Fatalf("expected code_locked, got %s", locked.State())
	}
	firstFetch := locked.CodeFetchedAt

	if _, err := s.ReleaseAssignment(ctx, alloc.AssignmentID); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("expected ErrNotRefundable, got %v", err)
	}

	// A later fetch refreshes the code but never moves the lock timestamp.
	relocked, err := s.LockCode(ctx, alloc.AssignmentID, "771122")
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if relocked.LastCode != "771122" {
		t.Fatalf("code not refreshed: %s", relocked.LastCode)
	}
	if !relocked.CodeFetchedAt.Equal(*firstFetch) {
		t.Fatalf("lock timestamp moved from %v to %v", firstFetch, relocked.CodeFetchedAt)
	}

	if _, err := s.ReleaseAssignment(ctx, alloc.AssignmentID); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("release accepted after re-fetch: %v", err)
	}

	user, _ = s.UserByExternalID(ctx, "u-1")
	if user.Credits != 0 {
		t.Fatalf("balance changed by rejected release: %d", user.Credits)
	}
}

func TestMemoryStoreConcurrentAllocateSingleNumber(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	a := SeedUser(s, "u-a", "", 5, false)
	b := SeedUser(s, "u-b", "", 5, false)
	if _, err := s.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := s.AllocateNumber(ctx, userID)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var successes, noNumber int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrNoNumberAvailable):
			noNumber++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || noNumber != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d rejections", successes, noNumber)
	}

	inv, _ := s.Inventory(ctx)
	if inv.Free != 0 || inv.Assigned != 1 {
		t.Fatalf("unexpected pool state: %+v", inv)
	}
}

func TestMemoryStoreConcurrentAllocateNeverOversells(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	const numbers = 3
	const callers = 10

	for i := 0; i < numbers; i++ {
		if _, err := s.AddNumber(ctx, fmt.Sprintf("+1555000%04d", i), fmt.Sprintf("tok-%d", i)); err != nil {
			t.Fatalf("add number: %v", err)
		}
	}

	var users []User
	for i := 0; i < callers; i++ {
		users = append(users, SeedUser(s, fmt.Sprintf("u-%d", i), "", 1, false))
	}

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := s.AllocateNumber(ctx, userID)
			results <- err
		}(u.ID)
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrNoNumberAvailable) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != numbers {
		t.Fatalf("expected %d successful allocations, got %d", numbers, successes)
	}
}

func TestMemoryStoreSetCreditsRecordsDelta(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "", 2, false)
	delta, balance, err := s.SetCredits(ctx, user.ID, 5, map[string]string{"admin_id": "root"})
	if err != nil {
		t.Fatalf("set credits: %v", err)
	}
	if delta != 3 || balance != 5 {
		t.Fatalf("expected delta 3 balance 5, got %d/%d", delta, balance)
	}

	txs, _ := s.TransactionsForUser(ctx, user.ID)
	last := txs[len(txs)-1]
	if last.Delta != 3 || last.Reason != ReasonAdminSetAdjust {
		t.Fatalf("unexpected trail entry: %+v", last)
	}

	rec, _ := s.Reconcile(ctx, user.ID)
	if !rec.Balanced {
		t.Fatalf("ledger out of balance: %+v", rec)
	}

	// Setting to the current value writes nothing.
	before, _ := s.TransactionsForUser(ctx, user.ID)
	delta, balance, err = s.SetCredits(ctx, user.ID, 5, nil)
	if err != nil {
		t.Fatalf("set credits: %v", err)
	}
	if delta != 0 || balance != 5 {
		t.Fatalf("expected zero delta, got %d/%d", delta, balance)
	}
	after, _ := s.TransactionsForUser(ctx, user.ID)
	if len(after) != len(before) {
		t.Fatalf("no-op set added a transaction: %d -> %d", len(before), len(after))
	}
}

func TestMemoryStoreAdjustRejectsNegativeBalance(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "", 2, false)
	if _, err := s.AdjustCredits(ctx, user.ID, -3, ReasonAdminGrant, nil); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	balance, err := s.AdjustCredits(ctx, user.ID, -2, ReasonAdminGrant, nil)
	if err != nil {
		t.Fatalf("adjust to zero: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestMemoryStoreEnsureUserIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	first, err := s.EnsureUser(ctx, "u-1", "alice")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.Credits != 0 {
		t.Fatalf("new users start with zero credits, got %d", first.Credits)
	}

	second, err := s.EnsureUser(ctx, "u-1", "alice-renamed")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("ensure created a duplicate user")
	}
	if second.Handle != "alice-renamed" {
		t.Fatalf("handle not refreshed: %s", second.Handle)
	}

	if _, err := s.UserByHandle(ctx, "alice-renamed"); err != nil {
		t.Fatalf("lookup by handle: %v", err)
	}
}

func TestMemoryStoreAddNumberRejectsDuplicates(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if _, err := s.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	if _, err := s.AddNumber(ctx, "+15550000001", "tok-2"); !errors.Is(err, ErrNumberExists) {
		t.Fatalf("expected ErrNumberExists for phone, got %v", err)
	}
	if _, err := s.AddNumber(ctx, "+15550000002", "tok-1"); !errors.Is(err, ErrNumberExists) {
		t.Fatalf("expected ErrNumberExists for token, got %v", err)
	}
}

func TestMemoryStoreRetireAssignedNumberRejected(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	user := SeedUser(s, "u-1", "", 1, false)
	if _, err := s.AddNumber(ctx, "+15550000001", "tok-1"); err != nil {
		t.Fatalf("add number: %v", err)
	}
	if _, err := s.AllocateNumber(ctx, user.ID); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := s.RetireNumber(ctx, "+15550000001"); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("expected rejection for assigned number, got %v", err)
	}
}
