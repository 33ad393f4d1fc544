package ledger

import "time"

// NumberStatus tracks where a number sits in its pool lifecycle.
type NumberStatus string

const (
	NumberFree     NumberStatus = "free"
	NumberAssigned NumberStatus = "assigned"
	NumberRetired  NumberStatus = "retired"
)

// Reason classifies a credit transaction.
type Reason string

const (
	ReasonPurchase       Reason = "purchase"
	ReasonAdminGrant     Reason = "admin_grant"
	ReasonGetAccount     Reason = "get_account"
	ReasonRefundRemove   Reason = "refund_remove"
	ReasonAdminSetAdjust Reason = "admin_set_adjust"
)

// User is a credit-holding account, created on first contact and never deleted.
type User struct {
	ID         string
	ExternalID string
	Handle     string
	IsAdmin    bool
	Credits    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Number is a leasable phone number with the opaque token used to pull
// SMS codes from the delivery provider.
type Number struct {
	ID          string
	Phone       string
	AccessToken string
	Status      NumberStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssignmentState is the explicit lifecycle state of an assignment.
type AssignmentState string

const (
	// StateActive means the number is leased and still refundable.
	StateActive AssignmentState = "active"
	// StateCodeLocked means a code has been delivered; the lease can no
	// longer be refunded.
	StateCodeLocked AssignmentState = "code_locked"
	// StateReleased is terminal; the record is immutable from here on.
	StateReleased AssignmentState = "released"
)

// Assignment links a user to a number for the duration of a lease.
type Assignment struct {
	ID            string
	UserID        string
	NumberID      string
	AssignedAt    time.Time
	ReleasedAt    *time.Time
	CodeFetchedAt *time.Time
	LastCode      string
	Active        bool
}

// State derives the tagged lifecycle state from the stored fields.
func (a Assignment) State() AssignmentState {
	if !a.Active {
		return StateReleased
	}
	if a.CodeFetchedAt != nil {
		return StateCodeLocked
	}
	return StateActive
}

// CreditTransaction is an immutable, append-only ledger entry. For every
// user, Credits must equal the sum of Delta over all their transactions.
type CreditTransaction struct {
	ID           string
	UserID       string
	Delta        int64
	Reason       Reason
	AssignmentID string
	Meta         map[string]string
	CreatedAt    time.Time
}

// ArchivedAssignment is the long-term retention copy of a terminal
// assignment, written outside the hot path.
type ArchivedAssignment struct {
	ID            string
	UserID        string
	NumberID      string
	AssignedAt    time.Time
	ReleasedAt    time.Time
	CodeFetchedAt *time.Time
	LastCode      string
}
