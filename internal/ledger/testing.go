package ledger

import (
	"time"

	"github.com/google/uuid"
)

// SeedUser is a test helper that creates a user with an opening balance when
// using the in-memory store. The balance arrives as a purchase transaction
// so the reconciliation invariant holds from the start.
func SeedUser(s Store, externalID, handle string, credits int64, admin bool) User {
	mem, ok := s.(*memoryStore)
	if !ok {
		return User{}
	}

	mem.mu.Lock()
	defer mem.mu.Unlock()

	now := time.Now().UTC()
	if id, exists := mem.byExternalID[externalID]; exists {
		return *mem.users[id]
	}

	u := &User{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Handle:     handle,
		IsAdmin:    admin,
		Credits:    credits,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	mem.users[u.ID] = u
	mem.byExternalID[externalID] = u.ID
	if credits != 0 {
		mem.appendTransaction(u.ID, credits, ReasonPurchase, "",
			map[string]string{"description": "seeded balance"}, now)
	}
	return *u
}

// ArchivedAssignments exposes the archival table of the in-memory store.
func ArchivedAssignments(s Store) []ArchivedAssignment {
	mem, ok := s.(*memoryStore)
	if !ok {
		return nil
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	return append([]ArchivedAssignment(nil), mem.archived...)
}
