package ledger

import (
	"context"
	"errors"
	"time"
)

// AllocationCost is the fixed credit price of leasing one number.
const AllocationCost int64 = 1

var (
	// ErrInsufficientCredits occurs when a user's balance cannot cover an
	// allocation or an adjustment would push it below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNoNumberAvailable occurs when the free pool is empty.
	ErrNoNumberAvailable = errors.New("no number available")

	// ErrAssignmentNotFound occurs when an assignment id does not resolve
	// to a live assignment.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrNotRefundable occurs when a release is attempted after a code has
	// been delivered for the assignment.
	ErrNotRefundable = errors.New("assignment is not refundable")

	// ErrUserNotFound occurs when a user reference does not resolve.
	ErrUserNotFound = errors.New("user not found")

	// ErrNumberExists occurs when importing a phone or access token that is
	// already in the pool.
	ErrNumberExists = errors.New("number already exists")

	// ErrNumberNotFound occurs when a phone does not resolve to a pool entry.
	ErrNumberNotFound = errors.New("number not found")
)

// AllocationResult captures the outcome of leasing a number.
type AllocationResult struct {
	AssignmentID string
	Phone        string
	Balance      int64
}

// ReleaseResult captures the outcome of refunding a lease.
type ReleaseResult struct {
	AssignmentID   string
	Phone          string
	Balance        int64
	UserExternalID string
	Refunded       int64
}

// ActiveNumber is an active assignment joined with its number for listing.
type ActiveNumber struct {
	AssignmentID string
	Phone        string
	LastCode     string
	AssignedAt   time.Time
	CodeLocked   bool
}

// InventoryCounts summarizes the pool by status.
type InventoryCounts struct {
	Free     int64
	Assigned int64
	Retired  int64
}

// ReconcileResult compares a user's balance against their transaction log.
type ReconcileResult struct {
	Credits        int64
	TransactionSum int64
	Balanced       bool
}

// Store is the durable record of users, numbers, assignments and credit
// transactions. Every method is a single atomic unit: its effects are
// all-or-nothing and invisible until committed.
type Store interface {
	// EnsureUser resolves a user by external id, creating a zero-balance
	// record on first contact. A non-empty handle refreshes the stored one.
	EnsureUser(ctx context.Context, externalID, handle string) (User, error)
	UserByExternalID(ctx context.Context, externalID string) (User, error)
	UserByHandle(ctx context.Context, handle string) (User, error)
	SetAdmin(ctx context.Context, userID string, admin bool) error

	// AllocateNumber picks a free number, debits one credit, appends the
	// get_account transaction and creates the active assignment, atomically.
	AllocateNumber(ctx context.Context, userID string) (AllocationResult, error)
	// ReleaseAssignment refunds one credit, appends the refund_remove
	// transaction, frees the number and deactivates the assignment,
	// atomically. Rejected once a code has been fetched.
	ReleaseAssignment(ctx context.Context, assignmentID string) (ReleaseResult, error)
	// LockCode records a delivered code. The first successful call sets
	// code_fetched_at and makes the assignment permanently non-refundable;
	// later calls refresh the code but never clear the lock.
	LockCode(ctx context.Context, assignmentID, code string) (Assignment, error)

	AssignmentWithNumber(ctx context.Context, assignmentID string) (Assignment, Number, error)
	ActiveAssignments(ctx context.Context, userID string) ([]ActiveNumber, error)

	// AdjustCredits applies a signed delta and appends a matching
	// transaction. Fails if the balance would go negative.
	AdjustCredits(ctx context.Context, userID string, delta int64, reason Reason, meta map[string]string) (int64, error)
	// SetCredits pins the balance to amount exactly, appending an
	// admin_set_adjust transaction carrying the difference. Setting the
	// current value writes nothing.
	SetCredits(ctx context.Context, userID string, amount int64, meta map[string]string) (delta int64, balance int64, err error)
	TransactionsForUser(ctx context.Context, userID string) ([]CreditTransaction, error)
	Reconcile(ctx context.Context, userID string) (ReconcileResult, error)

	AddNumber(ctx context.Context, phone, accessToken string) (Number, error)
	RetireNumber(ctx context.Context, phone string) (Number, error)
	Inventory(ctx context.Context) (InventoryCounts, error)
}
