package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the ledger in PostgreSQL. Each operation runs as a
// single transaction with row locks on the records it decides over, so the
// read-then-write inside one operation cannot race another caller.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    external_id TEXT UNIQUE NOT NULL,
    handle TEXT NOT NULL DEFAULT '',
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    credits BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS numbers (
    id UUID PRIMARY KEY,
    phone TEXT UNIQUE NOT NULL,
    access_token TEXT UNIQUE NOT NULL,
    status TEXT NOT NULL DEFAULT 'free',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS assignments (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users (id),
    number_id UUID NOT NULL REFERENCES numbers (id),
    assigned_at TIMESTAMPTZ NOT NULL,
    released_at TIMESTAMPTZ,
    code_fetched_at TIMESTAMPTZ,
    last_code TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE UNIQUE INDEX IF NOT EXISTS assignments_one_active_per_number
    ON assignments (number_id) WHERE active;

CREATE TABLE IF NOT EXISTS credit_transactions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users (id),
    delta BIGINT NOT NULL,
    reason TEXT NOT NULL,
    ref_assignment_id UUID REFERENCES assignments (id),
    meta JSONB,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS archived_assignments (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    number_id UUID NOT NULL,
    assigned_at TIMESTAMPTZ NOT NULL,
    released_at TIMESTAMPTZ NOT NULL,
    code_fetched_at TIMESTAMPTZ,
    last_code TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema creates the ledger tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

// IsConflict reports whether err is a Postgres serialization failure,
// deadlock or unique violation. Callers treat these as a signal to retry
// the whole operation against the updated state.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

// EnsureUser resolves or creates the user for an external identity.
func (s *PostgresStore) EnsureUser(ctx context.Context, externalID, handle string) (User, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `INSERT INTO users (id, external_id, handle, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4)
        ON CONFLICT (external_id) DO NOTHING`, uuid.New(), externalID, handle, now)
	if err != nil {
		return User{}, err
	}
	if handle != "" {
		if _, err := s.db.Exec(ctx, `UPDATE users SET handle = $1, updated_at = $2
            WHERE external_id = $3 AND handle <> $1`, handle, now, externalID); err != nil {
			return User{}, err
		}
	}
	return s.UserByExternalID(ctx, externalID)
}

// UserByExternalID fetches a user by external identity.
func (s *PostgresStore) UserByExternalID(ctx context.Context, externalID string) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `SELECT id, external_id, handle, is_admin, credits, created_at, updated_at
        FROM users WHERE external_id = $1`, externalID))
}

// UserByHandle fetches a user by display handle.
func (s *PostgresStore) UserByHandle(ctx context.Context, handle string) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `SELECT id, external_id, handle, is_admin, credits, created_at, updated_at
        FROM users WHERE handle = $1`, handle))
}

func (s *PostgresStore) scanUser(row pgx.Row) (User, error) {
	var (
		u         User
		id        uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &u.ExternalID, &u.Handle, &u.IsAdmin, &u.Credits, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	u.ID = id.String()
	u.CreatedAt = createdAt.UTC()
	u.UpdatedAt = updatedAt.UTC()
	return u, nil
}

// SetAdmin flips the administrator flag for a user.
func (s *PostgresStore) SetAdmin(ctx context.Context, userID string, admin bool) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrUserNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE users SET is_admin = $1, updated_at = $2 WHERE id = $3`,
		admin, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AllocateNumber leases a free number to the user as one transaction.
func (s *PostgresStore) AllocateNumber(ctx context.Context, userID string) (AllocationResult, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return AllocationResult{}, ErrUserNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return AllocationResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var credits int64
	if err := tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, uid).Scan(&credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AllocationResult{}, ErrUserNotFound
		}
		return AllocationResult{}, err
	}
	if credits < AllocationCost {
		return AllocationResult{}, ErrInsufficientCredits
	}

	// SKIP LOCKED keeps contending allocations off the same row; the
	// oldest-first order is a tie-break for reproducibility, not a contract.
	var (
		numberID uuid.UUID
		phone    string
	)
	err = tx.QueryRow(ctx, `SELECT id, phone FROM numbers WHERE status = 'free'
        ORDER BY created_at, phone LIMIT 1 FOR UPDATE SKIP LOCKED`).Scan(&numberID, &phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AllocationResult{}, ErrNoNumberAvailable
		}
		return AllocationResult{}, err
	}

	now := time.Now().UTC()
	balance := credits - AllocationCost

	if _, err := tx.Exec(ctx, `UPDATE users SET credits = $1, updated_at = $2 WHERE id = $3`,
		balance, now, uid); err != nil {
		return AllocationResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE numbers SET status = 'assigned', updated_at = $1 WHERE id = $2`,
		now, numberID); err != nil {
		return AllocationResult{}, err
	}

	assignmentID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO assignments (id, user_id, number_id, assigned_at, active)
        VALUES ($1, $2, $3, $4, TRUE)`, assignmentID, uid, numberID, now); err != nil {
		return AllocationResult{}, err
	}

	if err := insertTransaction(ctx, tx, uid, -AllocationCost, ReasonGetAccount, &assignmentID,
		map[string]string{"description": "deducted for number allocation"}, now); err != nil {
		return AllocationResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return AllocationResult{}, err
	}

	return AllocationResult{AssignmentID: assignmentID.String(), Phone: phone, Balance: balance}, nil
}

// ReleaseAssignment refunds an active, not-yet-locked lease as one transaction.
func (s *PostgresStore) ReleaseAssignment(ctx context.Context, assignmentID string) (ReleaseResult, error) {
	aid, err := uuid.Parse(assignmentID)
	if err != nil {
		return ReleaseResult{}, ErrAssignmentNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ReleaseResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var (
		userID        uuid.UUID
		numberID      uuid.UUID
		assignedAt    time.Time
		codeFetchedAt *time.Time
		lastCode      string
		active        bool
	)
	err = tx.QueryRow(ctx, `SELECT user_id, number_id, assigned_at, code_fetched_at, last_code, active
        FROM assignments WHERE id = $1 FOR UPDATE`, aid).
		Scan(&userID, &numberID, &assignedAt, &codeFetchedAt, &lastCode, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReleaseResult{}, ErrAssignmentNotFound
		}
		return ReleaseResult{}, err
	}
	if !active {
		return ReleaseResult{}, ErrAssignmentNotFound
	}
	if codeFetchedAt != nil {
		return ReleaseResult{}, ErrNotRefundable
	}

	var (
		credits    int64
		externalID string
	)
	if err := tx.QueryRow(ctx, `SELECT credits, external_id FROM users WHERE id = $1 FOR UPDATE`, userID).
		Scan(&credits, &externalID); err != nil {
		return ReleaseResult{}, err
	}

	var phone string
	if err := tx.QueryRow(ctx, `SELECT phone FROM numbers WHERE id = $1`, numberID).Scan(&phone); err != nil {
		return ReleaseResult{}, err
	}

	now := time.Now().UTC()
	balance := credits + AllocationCost

	if _, err := tx.Exec(ctx, `UPDATE users SET credits = $1, updated_at = $2 WHERE id = $3`,
		balance, now, userID); err != nil {
		return ReleaseResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE numbers SET status = 'free', updated_at = $1 WHERE id = $2`,
		now, numberID); err != nil {
		return ReleaseResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE assignments SET active = FALSE, released_at = $1 WHERE id = $2`,
		now, aid); err != nil {
		return ReleaseResult{}, err
	}
	if err := insertTransaction(ctx, tx, userID, AllocationCost, ReasonRefundRemove, &aid,
		map[string]string{"description": "refund for releasing number"}, now); err != nil {
		return ReleaseResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ReleaseResult{}, err
	}

	// Archival is opportunistic: the released assignment stays queryable in
	// the live table, so a failed archive write only warrants a warning.
	if _, err := s.db.Exec(ctx, `INSERT INTO archived_assignments
        (id, user_id, number_id, assigned_at, released_at, code_fetched_at, last_code)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		aid, userID, numberID, assignedAt, now, codeFetchedAt, lastCode); err != nil && s.logger != nil {
		s.logger.Warn("archive released assignment", "assignment_id", assignmentID, "error", err)
	}

	return ReleaseResult{
		AssignmentID:   assignmentID,
		Phone:          phone,
		Balance:        balance,
		UserExternalID: externalID,
		Refunded:       AllocationCost,
	}, nil
}

// LockCode stores a delivered code and locks the assignment against refunds.
func (s *PostgresStore) LockCode(ctx context.Context, assignmentID, code string) (Assignment, error) {
	aid, err := uuid.Parse(assignmentID)
	if err != nil {
		return Assignment{}, ErrAssignmentNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Assignment{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var active bool
	if err := tx.QueryRow(ctx, `SELECT active FROM assignments WHERE id = $1 FOR UPDATE`, aid).Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrAssignmentNotFound
		}
		return Assignment{}, err
	}
	if !active {
		return Assignment{}, ErrAssignmentNotFound
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE assignments
        SET last_code = $1, code_fetched_at = COALESCE(code_fetched_at, $2)
        WHERE id = $3`, code, now, aid); err != nil {
		return Assignment{}, err
	}

	assignment, err := scanAssignment(tx.QueryRow(ctx, `SELECT id, user_id, number_id, assigned_at,
        released_at, code_fetched_at, last_code, active FROM assignments WHERE id = $1`, aid))
	if err != nil {
		return Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

// AssignmentWithNumber resolves an assignment together with its number.
func (s *PostgresStore) AssignmentWithNumber(ctx context.Context, assignmentID string) (Assignment, Number, error) {
	aid, err := uuid.Parse(assignmentID)
	if err != nil {
		return Assignment{}, Number{}, ErrAssignmentNotFound
	}

	assignment, err := scanAssignment(s.db.QueryRow(ctx, `SELECT id, user_id, number_id, assigned_at,
        released_at, code_fetched_at, last_code, active FROM assignments WHERE id = $1`, aid))
	if err != nil {
		return Assignment{}, Number{}, err
	}

	var (
		n         Number
		nid       uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	err = s.db.QueryRow(ctx, `SELECT id, phone, access_token, status, created_at, updated_at
        FROM numbers WHERE id = $1`, assignment.NumberID).
		Scan(&nid, &n.Phone, &n.AccessToken, &n.Status, &createdAt, &updatedAt)
	if err != nil {
		return Assignment{}, Number{}, err
	}
	n.ID = nid.String()
	n.CreatedAt = createdAt.UTC()
	n.UpdatedAt = updatedAt.UTC()
	return assignment, n, nil
}

// ActiveAssignments lists the user's live leases with their numbers.
func (s *PostgresStore) ActiveAssignments(ctx context.Context, userID string) ([]ActiveNumber, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	rows, err := s.db.Query(ctx, `SELECT a.id, n.phone, a.last_code, a.assigned_at, a.code_fetched_at IS NOT NULL
        FROM assignments a INNER JOIN numbers n ON n.id = a.number_id
        WHERE a.user_id = $1 AND a.active ORDER BY a.assigned_at`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ActiveNumber
	for rows.Next() {
		var (
			entry      ActiveNumber
			id         uuid.UUID
			assignedAt time.Time
		)
		if err := rows.Scan(&id, &entry.Phone, &entry.LastCode, &assignedAt, &entry.CodeLocked); err != nil {
			return nil, err
		}
		entry.AssignmentID = id.String()
		entry.AssignedAt = assignedAt.UTC()
		result = append(result, entry)
	}
	return result, rows.Err()
}

// AdjustCredits applies a signed delta with its ledger entry as one transaction.
func (s *PostgresStore) AdjustCredits(ctx context.Context, userID string, delta int64, reason Reason, meta map[string]string) (int64, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return 0, ErrUserNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var credits int64
	if err := tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, uid).Scan(&credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	balance := credits + delta
	if balance < 0 {
		return 0, ErrInsufficientCredits
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE users SET credits = $1, updated_at = $2 WHERE id = $3`,
		balance, now, uid); err != nil {
		return 0, err
	}
	if err := insertTransaction(ctx, tx, uid, delta, reason, nil, meta, now); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// SetCredits pins the balance exactly, recording the difference.
func (s *PostgresStore) SetCredits(ctx context.Context, userID string, amount int64, meta map[string]string) (int64, int64, error) {
	if amount < 0 {
		return 0, 0, ErrInsufficientCredits
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return 0, 0, ErrUserNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var credits int64
	if err := tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, uid).Scan(&credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrUserNotFound
		}
		return 0, 0, err
	}

	delta := amount - credits
	if delta == 0 {
		return 0, amount, nil
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE users SET credits = $1, updated_at = $2 WHERE id = $3`,
		amount, now, uid); err != nil {
		return 0, 0, err
	}
	if err := insertTransaction(ctx, tx, uid, delta, ReasonAdminSetAdjust, nil, meta, now); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return delta, amount, nil
}

// TransactionsForUser returns the user's full credit trail, oldest first.
func (s *PostgresStore) TransactionsForUser(ctx context.Context, userID string) ([]CreditTransaction, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	rows, err := s.db.Query(ctx, `SELECT id, user_id, delta, reason, ref_assignment_id, meta, created_at
        FROM credit_transactions WHERE user_id = $1 ORDER BY created_at, id`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CreditTransaction
	for rows.Next() {
		var (
			entry     CreditTransaction
			id        uuid.UUID
			uidVal    uuid.UUID
			refID     *uuid.UUID
			meta      []byte
			createdAt time.Time
		)
		if err := rows.Scan(&id, &uidVal, &entry.Delta, &entry.Reason, &refID, &meta, &createdAt); err != nil {
			return nil, err
		}
		entry.ID = id.String()
		entry.UserID = uidVal.String()
		if refID != nil {
			entry.AssignmentID = refID.String()
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Meta); err != nil {
				return nil, err
			}
		}
		entry.CreatedAt = createdAt.UTC()
		result = append(result, entry)
	}
	return result, rows.Err()
}

// Reconcile checks the balance against the summed transaction deltas.
func (s *PostgresStore) Reconcile(ctx context.Context, userID string) (ReconcileResult, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ReconcileResult{}, ErrUserNotFound
	}

	var res ReconcileResult
	err = s.db.QueryRow(ctx, `SELECT u.credits,
        COALESCE((SELECT SUM(delta) FROM credit_transactions WHERE user_id = u.id), 0)
        FROM users u WHERE u.id = $1`, uid).Scan(&res.Credits, &res.TransactionSum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReconcileResult{}, ErrUserNotFound
		}
		return ReconcileResult{}, err
	}
	res.Balanced = res.Credits == res.TransactionSum
	return res, nil
}

// AddNumber imports a number into the free pool.
func (s *PostgresStore) AddNumber(ctx context.Context, phone, accessToken string) (Number, error) {
	now := time.Now().UTC()
	id := uuid.New()
	_, err := s.db.Exec(ctx, `INSERT INTO numbers (id, phone, access_token, status, created_at, updated_at)
        VALUES ($1, $2, $3, 'free', $4, $4)`, id, phone, accessToken, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Number{}, ErrNumberExists
		}
		return Number{}, err
	}
	return Number{ID: id.String(), Phone: phone, AccessToken: accessToken, Status: NumberFree, CreatedAt: now, UpdatedAt: now}, nil
}

// RetireNumber takes a number out of circulation permanently. Assigned
// numbers stay assigned until released; retirement only blocks re-entry
// into the free pool.
func (s *PostgresStore) RetireNumber(ctx context.Context, phone string) (Number, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Number{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var (
		id     uuid.UUID
		status NumberStatus
	)
	if err := tx.QueryRow(ctx, `SELECT id, status FROM numbers WHERE phone = $1 FOR UPDATE`, phone).
		Scan(&id, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Number{}, ErrNumberNotFound
		}
		return Number{}, err
	}
	if status == NumberAssigned {
		return Number{}, ErrNotRefundable
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE numbers SET status = 'retired', updated_at = $1 WHERE id = $2`,
		now, id); err != nil {
		return Number{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Number{}, err
	}
	return Number{ID: id.String(), Phone: phone, Status: NumberRetired, UpdatedAt: now}, nil
}

// Inventory counts the pool by status.
func (s *PostgresStore) Inventory(ctx context.Context) (InventoryCounts, error) {
	var counts InventoryCounts
	err := s.db.QueryRow(ctx, `SELECT
        COUNT(*) FILTER (WHERE status = 'free'),
        COUNT(*) FILTER (WHERE status = 'assigned'),
        COUNT(*) FILTER (WHERE status = 'retired')
        FROM numbers`).Scan(&counts.Free, &counts.Assigned, &counts.Retired)
	return counts, err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta int64, reason Reason, ref *uuid.UUID, meta map[string]string, now time.Time) error {
	var metaJSON []byte
	if len(meta) > 0 {
		var err error
		metaJSON, err = json.Marshal(meta)
		if err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx, `INSERT INTO credit_transactions (id, user_id, delta, reason, ref_assignment_id, meta, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, uuid.New(), userID, delta, reason, ref, metaJSON, now)
	return err
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var (
		a             Assignment
		id            uuid.UUID
		userID        uuid.UUID
		numberID      uuid.UUID
		assignedAt    time.Time
		releasedAt    *time.Time
		codeFetchedAt *time.Time
	)
	if err := row.Scan(&id, &userID, &numberID, &assignedAt, &releasedAt, &codeFetchedAt, &a.LastCode, &a.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrAssignmentNotFound
		}
		return Assignment{}, err
	}
	a.ID = id.String()
	a.UserID = userID.String()
	a.NumberID = numberID.String()
	a.AssignedAt = assignedAt.UTC()
	a.ReleasedAt = releasedAt
	a.CodeFetchedAt = codeFetchedAt
	return a, nil
}
