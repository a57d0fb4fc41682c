package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kamenolom/transport-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AcceptanceRepository is the persistence interface for driver claims.
type AcceptanceRepository interface {
	// Reserve atomically checks remaining capacity and inserts a pending
	// acceptance, serialized per request. Returns models.ErrRequestClosed,
	// models.ErrCapacityExceeded or models.ErrConflict (retryable).
	Reserve(ctx context.Context, requestID, userID string, registrations []string, count int) (*models.TransportAcceptance, error)
	GetAcceptance(ctx context.Context, acceptanceID string) (*models.TransportAcceptance, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.TransportAcceptance, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TransportAcceptance, error)
	ListApprovedByUser(ctx context.Context, requestID, userID string) ([]models.TransportAcceptance, error)
	// ClaimedCount sums accepted_count over non-declined acceptances.
	ClaimedCount(ctx context.Context, requestID string) (int, error)
	// ApprovedCount sums accepted_count over approved acceptances only.
	ApprovedCount(ctx context.Context, requestID string) (int, error)
	// Review is a compare-and-swap on status = pending.
	Review(ctx context.Context, acceptanceID string, status models.AcceptanceStatus, reviewerID string) (*models.TransportAcceptance, error)
	MarkPaid(ctx context.Context, acceptanceID string) (*models.TransportAcceptance, error)
	// FindLinkCandidates returns approved acceptances holding the plate
	// whose request is scheduled on or before approvedAt, regardless of
	// the request's administrative status.
	FindLinkCandidates(ctx context.Context, plate string, approvedAt time.Time) ([]models.TransportAcceptance, error)
}

// PostgresAcceptanceRepository is the AcceptanceRepository implementation for the database.
type PostgresAcceptanceRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresAcceptanceRepository creates a new PostgresAcceptanceRepository instance.
func NewPostgresAcceptanceRepository(db *pgxpool.Pool) *PostgresAcceptanceRepository {
	return &PostgresAcceptanceRepository{DB: db}
}

const acceptanceColumns = `id, request_id, user_id, accepted_count, status, reviewed_by, reviewed_at, payment_status, created_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanAcceptance(row pgx.Row) (*models.TransportAcceptance, error) {
	var a models.TransportAcceptance
	var reviewedBy *string
	err := row.Scan(
		&a.ID,
		&a.RequestID,
		&a.UserID,
		&a.AcceptedCount,
		&a.Status,
		&reviewedBy,
		&a.ReviewedAt,
		&a.PaymentStatus,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transport acceptance", models.ErrNotFound)
		}
		return nil, err
	}
	if reviewedBy != nil {
		a.ReviewedBy = *reviewedBy
	}
	return &a, nil
}

func loadRegistrations(ctx context.Context, q rowQuerier, acceptanceID string) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT plate FROM acceptance_registration WHERE acceptance_id = $1 ORDER BY plate`, acceptanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []string
	for rows.Next() {
		var plate string
		if err := rows.Scan(&plate); err != nil {
			return nil, err
		}
		regs = append(regs, plate)
	}
	return regs, rows.Err()
}

// isRetryable reports whether the error is a lost race that may resolve
// once the competing transaction completes.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// Reserve locks the request row, re-checks remaining capacity under the
// lock and inserts a pending acceptance with its registration set.
func (r *PostgresAcceptanceRepository) Reserve(ctx context.Context, requestID, userID string, registrations []string, count int) (*models.TransportAcceptance, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var capacity int
	var status models.RequestStatus
	lockQuery := `SELECT truck_capacity, status FROM transport_request WHERE id = $1 FOR UPDATE`
	err = tx.QueryRow(ctx, lockQuery, requestID).Scan(&capacity, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transport request", models.ErrNotFound)
		}
		if isRetryable(err) {
			return nil, fmt.Errorf("%w: %v", models.ErrConflict, err)
		}
		return nil, err
	}
	if status != models.PendingRequest && status != models.ApprovedRequest {
		return nil, models.ErrRequestClosed
	}

	var claimed int
	sumQuery := `SELECT COALESCE(SUM(accepted_count), 0) FROM transport_acceptance
	             WHERE request_id = $1 AND status <> $2`
	if err := tx.QueryRow(ctx, sumQuery, requestID, models.DeclinedAcceptance).Scan(&claimed); err != nil {
		return nil, err
	}
	if count > capacity-claimed {
		return nil, fmt.Errorf("%w: %d slots requested, %d available", models.ErrCapacityExceeded, count, capacity-claimed)
	}

	newAcceptance := models.TransportAcceptance{
		ID:            uuid.New().String(),
		RequestID:     requestID,
		UserID:        userID,
		Registrations: registrations,
		AcceptedCount: count,
		Status:        models.PendingAcceptance,
		PaymentStatus: models.Unpaid,
		CreatedAt:     time.Now().UTC(),
	}
	insertQuery := `INSERT INTO transport_acceptance (id, request_id, user_id, accepted_count, status, payment_status, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.Exec(
		ctx,
		insertQuery,
		newAcceptance.ID,
		newAcceptance.RequestID,
		newAcceptance.UserID,
		newAcceptance.AcceptedCount,
		newAcceptance.Status,
		newAcceptance.PaymentStatus,
		newAcceptance.CreatedAt)
	if err != nil {
		return nil, err
	}

	regQuery := `INSERT INTO acceptance_registration (acceptance_id, plate) VALUES ($1, $2)`
	for _, plate := range registrations {
		if _, err := tx.Exec(ctx, regQuery, newAcceptance.ID, plate); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isRetryable(err) {
			return nil, fmt.Errorf("%w: %v", models.ErrConflict, err)
		}
		return nil, err
	}
	return &newAcceptance, nil
}

// GetAcceptance returns one acceptance with its registration set.
func (r *PostgresAcceptanceRepository) GetAcceptance(ctx context.Context, acceptanceID string) (*models.TransportAcceptance, error) {
	query := `SELECT ` + acceptanceColumns + ` FROM transport_acceptance WHERE id = $1`
	a, err := scanAcceptance(r.DB.QueryRow(ctx, query, acceptanceID))
	if err != nil {
		return nil, err
	}
	if a.Registrations, err = loadRegistrations(ctx, r.DB, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresAcceptanceRepository) queryAcceptances(ctx context.Context, query string, args ...any) ([]models.TransportAcceptance, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acceptances []models.TransportAcceptance
	for rows.Next() {
		a, err := scanAcceptance(rows)
		if err != nil {
			return nil, err
		}
		acceptances = append(acceptances, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range acceptances {
		if acceptances[i].Registrations, err = loadRegistrations(ctx, r.DB, acceptances[i].ID); err != nil {
			return nil, err
		}
	}
	return acceptances, nil
}

// ListByRequest returns all acceptances for a request.
func (r *PostgresAcceptanceRepository) ListByRequest(ctx context.Context, requestID string) ([]models.TransportAcceptance, error) {
	query := `SELECT ` + acceptanceColumns + ` FROM transport_acceptance WHERE request_id = $1 ORDER BY created_at`
	return r.queryAcceptances(ctx, query, requestID)
}

// ListByUser returns the driver's acceptances, newest first.
func (r *PostgresAcceptanceRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TransportAcceptance, error) {
	query := `SELECT ` + acceptanceColumns + ` FROM transport_acceptance
	          WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.queryAcceptances(ctx, query, userID, limit, offset)
}

// ListApprovedByUser returns the driver's approved acceptances on one request.
func (r *PostgresAcceptanceRepository) ListApprovedByUser(ctx context.Context, requestID, userID string) ([]models.TransportAcceptance, error) {
	query := `SELECT ` + acceptanceColumns + ` FROM transport_acceptance
	          WHERE request_id = $1 AND user_id = $2 AND status = $3`
	return r.queryAcceptances(ctx, query, requestID, userID, models.ApprovedAcceptance)
}

// ClaimedCount sums slots held by pending and approved acceptances.
func (r *PostgresAcceptanceRepository) ClaimedCount(ctx context.Context, requestID string) (int, error) {
	var claimed int
	query := `SELECT COALESCE(SUM(accepted_count), 0) FROM transport_acceptance
	          WHERE request_id = $1 AND status <> $2`
	err := r.DB.QueryRow(ctx, query, requestID, models.DeclinedAcceptance).Scan(&claimed)
	return claimed, err
}

// ApprovedCount sums slots held by approved acceptances.
func (r *PostgresAcceptanceRepository) ApprovedCount(ctx context.Context, requestID string) (int, error) {
	var approved int
	query := `SELECT COALESCE(SUM(accepted_count), 0) FROM transport_acceptance
	          WHERE request_id = $1 AND status = $2`
	err := r.DB.QueryRow(ctx, query, requestID, models.ApprovedAcceptance).Scan(&approved)
	return approved, err
}

// Review moves a pending acceptance to its terminal status. The WHERE on
// status makes the transition once-only under concurrent reviews.
func (r *PostgresAcceptanceRepository) Review(ctx context.Context, acceptanceID string, status models.AcceptanceStatus, reviewerID string) (*models.TransportAcceptance, error) {
	updateQuery := `UPDATE transport_acceptance
	                SET status = $1, reviewed_by = $2, reviewed_at = $3
	                WHERE id = $4 AND status = $5
	                RETURNING ` + acceptanceColumns
	a, err := scanAcceptance(r.DB.QueryRow(ctx, updateQuery, status, reviewerID, time.Now().UTC(), acceptanceID, models.PendingAcceptance))
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		var exists bool
		existsQuery := `SELECT EXISTS(SELECT 1 FROM transport_acceptance WHERE id = $1)`
		if scanErr := r.DB.QueryRow(ctx, existsQuery, acceptanceID).Scan(&exists); scanErr != nil {
			return nil, scanErr
		}
		if exists {
			return nil, models.ErrAlreadyReviewed
		}
		return nil, err
	}
	if a.Registrations, err = loadRegistrations(ctx, r.DB, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// MarkPaid sets payment_status to paid; already-paid rows pass through unchanged.
func (r *PostgresAcceptanceRepository) MarkPaid(ctx context.Context, acceptanceID string) (*models.TransportAcceptance, error) {
	query := `UPDATE transport_acceptance SET payment_status = $1 WHERE id = $2 RETURNING ` + acceptanceColumns
	a, err := scanAcceptance(r.DB.QueryRow(ctx, query, models.Paid, acceptanceID))
	if err != nil {
		return nil, err
	}
	if a.Registrations, err = loadRegistrations(ctx, r.DB, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// FindLinkCandidates pre-filters acceptances for the reconciler's link
// step. Candidates are scoped by plate and transport date only: deliveries
// keep arriving after a request is completed, and they must still count
// toward fulfillment and payout.
func (r *PostgresAcceptanceRepository) FindLinkCandidates(ctx context.Context, plate string, approvedAt time.Time) ([]models.TransportAcceptance, error) {
	query := `SELECT a.id, a.request_id, a.user_id, a.accepted_count, a.status, a.reviewed_by, a.reviewed_at, a.payment_status, a.created_at
	          FROM transport_acceptance a
	          JOIN acceptance_registration ar ON ar.acceptance_id = a.id
	          JOIN transport_request r ON r.id = a.request_id
	          WHERE ar.plate = $1
	          AND a.status = $2
	          AND r.transport_date <= $3`
	return r.queryAcceptances(ctx, query, plate, models.ApprovedAcceptance, approvedAt)
}
