package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore keeps the whole ledger behind one mutex, so every operation
// is trivially a single atomic unit. Used by tests and by dev mode when no
// database is configured.
type memoryStore struct {
	mu           sync.Mutex
	users        map[string]*User // by internal id
	byExternalID map[string]string
	numbers      []*Number // insertion order, the allocation tie-break
	assignments  map[string]*Assignment
	transactions []CreditTransaction
	archived     []ArchivedAssignment
}

// NewMemory creates a concurrency-safe in-memory ledger store.
func NewMemory() Store {
	return &memoryStore{
		users:        make(map[string]*User),
		byExternalID: make(map[string]string),
		assignments:  make(map[string]*Assignment),
	}
}

func (s *memoryStore) EnsureUser(_ context.Context, externalID, handle string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byExternalID[externalID]; ok {
		u := s.users[id]
		if handle != "" && u.Handle != handle {
			u.Handle = handle
			u.UpdatedAt = time.Now().UTC()
		}
		return *u, nil
	}

	now := time.Now().UTC()
	u := &User{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Handle:     handle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.users[u.ID] = u
	s.byExternalID[externalID] = u.ID
	return *u, nil
}

func (s *memoryStore) UserByExternalID(_ context.Context, externalID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternalID[externalID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *s.users[id], nil
}

func (s *memoryStore) UserByHandle(_ context.Context, handle string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Handle == handle {
			return *u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *memoryStore) SetAdmin(_ context.Context, userID string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.IsAdmin = admin
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryStore) AllocateNumber(_ context.Context, userID string) (AllocationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return AllocationResult{}, ErrUserNotFound
	}
	if u.Credits < AllocationCost {
		return AllocationResult{}, ErrInsufficientCredits
	}

	var number *Number
	for _, n := range s.numbers {
		if n.Status == NumberFree {
			number = n
			break
		}
	}
	if number == nil {
		return AllocationResult{}, ErrNoNumberAvailable
	}

	now := time.Now().UTC()
	u.Credits -= AllocationCost
	u.UpdatedAt = now
	number.Status = NumberAssigned
	number.UpdatedAt = now

	assignment := &Assignment{
		ID:         uuid.NewString(),
		UserID:     u.ID,
		NumberID:   number.ID,
		AssignedAt: now,
		Active:     true,
	}
	s.assignments[assignment.ID] = assignment
	s.appendTransaction(u.ID, -AllocationCost, ReasonGetAccount, assignment.ID,
		map[string]string{"description": "deducted for number allocation"}, now)

	return AllocationResult{AssignmentID: assignment.ID, Phone: number.Phone, Balance: u.Credits}, nil
}

func (s *memoryStore) ReleaseAssignment(_ context.Context, assignmentID string) (ReleaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentID]
	if !ok || !a.Active {
		return ReleaseResult{}, ErrAssignmentNotFound
	}
	if a.CodeFetchedAt != nil {
		return ReleaseResult{}, ErrNotRefundable
	}

	u := s.users[a.UserID]
	number := s.numberByID(a.NumberID)

	now := time.Now().UTC()
	u.Credits += AllocationCost
	u.UpdatedAt = now
	number.Status = NumberFree
	number.UpdatedAt = now
	a.Active = false
	a.ReleasedAt = &now
	s.appendTransaction(u.ID, AllocationCost, ReasonRefundRemove, a.ID,
		map[string]string{"description": "refund for releasing number"}, now)

	s.archived = append(s.archived, ArchivedAssignment{
		ID:            a.ID,
		UserID:        a.UserID,
		NumberID:      a.NumberID,
		AssignedAt:    a.AssignedAt,
		ReleasedAt:    now,
		CodeFetchedAt: a.CodeFetchedAt,
		LastCode:      a.LastCode,
	})

	return ReleaseResult{
		AssignmentID:   a.ID,
		Phone:          number.Phone,
		Balance:        u.Credits,
		UserExternalID: u.ExternalID,
		Refunded:       AllocationCost,
	}, nil
}

func (s *memoryStore) LockCode(_ context.Context, assignmentID, code string) (Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentID]
	if !ok || !a.Active {
		return Assignment{}, ErrAssignmentNotFound
	}

	a.LastCode = code
	if a.CodeFetchedAt == nil {
		now := time.Now().UTC()
		a.CodeFetchedAt = &now
	}
	return *a, nil
}

func (s *memoryStore) AssignmentWithNumber(_ context.Context, assignmentID string) (Assignment, Number, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentID]
	if !ok {
		return Assignment{}, Number{}, ErrAssignmentNotFound
	}
	number := s.numberByID(a.NumberID)
	return *a, *number, nil
}

func (s *memoryStore) ActiveAssignments(_ context.Context, userID string) ([]ActiveNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, ErrUserNotFound
	}

	var result []ActiveNumber
	for _, n := range s.numbers {
		for _, a := range s.assignments {
			if a.Active && a.UserID == userID && a.NumberID == n.ID {
				result = append(result, ActiveNumber{
					AssignmentID: a.ID,
					Phone:        n.Phone,
					LastCode:     a.LastCode,
					AssignedAt:   a.AssignedAt,
					CodeLocked:   a.CodeFetchedAt != nil,
				})
			}
		}
	}
	return result, nil
}

func (s *memoryStore) AdjustCredits(_ context.Context, userID string, delta int64, reason Reason, meta map[string]string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if u.Credits+delta < 0 {
		return 0, ErrInsufficientCredits
	}

	now := time.Now().UTC()
	u.Credits += delta
	u.UpdatedAt = now
	s.appendTransaction(u.ID, delta, reason, "", meta, now)
	return u.Credits, nil
}

func (s *memoryStore) SetCredits(_ context.Context, userID string, amount int64, meta map[string]string) (int64, int64, error) {
	if amount < 0 {
		return 0, 0, ErrInsufficientCredits
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, 0, ErrUserNotFound
	}

	delta := amount - u.Credits
	if delta == 0 {
		return 0, amount, nil
	}

	now := time.Now().UTC()
	u.Credits = amount
	u.UpdatedAt = now
	s.appendTransaction(u.ID, delta, ReasonAdminSetAdjust, "", meta, now)
	return delta, amount, nil
}

func (s *memoryStore) TransactionsForUser(_ context.Context, userID string) ([]CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	var result []CreditTransaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *memoryStore) Reconcile(_ context.Context, userID string) (ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ReconcileResult{}, ErrUserNotFound
	}
	var sum int64
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			sum += tx.Delta
		}
	}
	return ReconcileResult{Credits: u.Credits, TransactionSum: sum, Balanced: u.Credits == sum}, nil
}

func (s *memoryStore) AddNumber(_ context.Context, phone, accessToken string) (Number, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.numbers {
		if n.Phone == phone || n.AccessToken == accessToken {
			return Number{}, ErrNumberExists
		}
	}

	now := time.Now().UTC()
	n := &Number{
		ID:          uuid.NewString(),
		Phone:       phone,
		AccessToken: accessToken,
		Status:      NumberFree,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.numbers = append(s.numbers, n)
	return *n, nil
}

func (s *memoryStore) RetireNumber(_ context.Context, phone string) (Number, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.numbers {
		if n.Phone == phone {
			if n.Status == NumberAssigned {
				return Number{}, ErrNotRefundable
			}
			n.Status = NumberRetired
			n.UpdatedAt = time.Now().UTC()
			return *n, nil
		}
	}
	return Number{}, ErrNumberNotFound
}

func (s *memoryStore) Inventory(_ context.Context) (InventoryCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts InventoryCounts
	for _, n := range s.numbers {
		switch n.Status {
		case NumberFree:
			counts.Free++
		case NumberAssigned:
			counts.Assigned++
		case NumberRetired:
			counts.Retired++
		}
	}
	return counts, nil
}

func (s *memoryStore) numberByID(id string) *Number {
	for _, n := range s.numbers {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (s *memoryStore) appendTransaction(userID string, delta int64, reason Reason, assignmentID string, meta map[string]string, now time.Time) {
	s.transactions = append(s.transactions, CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Delta:        delta,
		Reason:       reason,
		AssignmentID: assignmentID,
		Meta:         meta,
		CreatedAt:    now,
	})
}
