package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kamenolom/transport-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RequestRepository is the persistence interface for transport requests.
type RequestRepository interface {
	CreateRequest(ctx context.Context, req models.TransportRequest) (*models.TransportRequest, error)
	GetRequest(ctx context.Context, requestID string) (*models.TransportRequest, error)
	ListRequests(ctx context.Context, limit, offset int) ([]models.TransportRequest, error)
	EditRequest(ctx context.Context, requestID string, updateFields map[string]interface{}) (*models.TransportRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID string, status models.RequestStatus) (*models.TransportRequest, error)
	DeleteRequest(ctx context.Context, requestID string) error
}

// PostgresRequestRepository is the RequestRepository implementation for the database.
type PostgresRequestRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresRequestRepository creates a new PostgresRequestRepository instance.
func NewPostgresRequestRepository(db *pgxpool.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{DB: db}
}

const requestColumns = `id, origin, destination, truck_capacity, transport_date, payout_per_ton, status, assigned_all, assigned_ids, created_by, created_at`

func scanRequest(row pgx.Row) (*models.TransportRequest, error) {
	var req models.TransportRequest
	err := row.Scan(
		&req.ID,
		&req.Origin,
		&req.Destination,
		&req.TruckCapacity,
		&req.TransportDate,
		&req.PayoutPerTon,
		&req.Status,
		&req.AssignedAll,
		&req.AssignedIDs,
		&req.CreatedBy,
		&req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transport request", models.ErrNotFound)
		}
		return nil, err
	}
	return &req, nil
}

// CreateRequest inserts a new transport request.
func (r *PostgresRequestRepository) CreateRequest(ctx context.Context, req models.TransportRequest) (*models.TransportRequest, error) {
	req.ID = uuid.New().String()
	req.Status = models.PendingRequest
	req.CreatedAt = time.Now().UTC()

	insertQuery := `INSERT INTO transport_request (id, origin, destination, truck_capacity, transport_date, payout_per_ton, status, assigned_all, assigned_ids, created_by, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		req.ID,
		req.Origin,
		req.Destination,
		req.TruckCapacity,
		req.TransportDate,
		req.PayoutPerTon,
		req.Status,
		req.AssignedAll,
		req.AssignedIDs,
		req.CreatedBy,
		req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetRequest returns one transport request by id.
func (r *PostgresRequestRepository) GetRequest(ctx context.Context, requestID string) (*models.TransportRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transport_request WHERE id = $1`
	return scanRequest(r.DB.QueryRow(ctx, query, requestID))
}

// ListRequests returns transport requests ordered by transport date.
func (r *PostgresRequestRepository) ListRequests(ctx context.Context, limit, offset int) ([]models.TransportRequest, error) {
	query := `SELECT ` + requestColumns + `
	          FROM transport_request
	          ORDER BY transport_date DESC, created_at DESC
	          LIMIT $1 OFFSET $2`
	rows, err := r.DB.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.TransportRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// EditRequest updates a subset of request fields.
func (r *PostgresRequestRepository) EditRequest(ctx context.Context, requestID string, updateFields map[string]interface{}) (*models.TransportRequest, error) {
	var updates []string
	args := []interface{}{requestID} // First argument is always the request id
	argIndex := 2

	if capacity, ok := updateFields["truckCapacity"].(int); ok {
		updates = append(updates, fmt.Sprintf("truck_capacity = $%d", argIndex))
		args = append(args, capacity)
		argIndex++
	}
	if date, ok := updateFields["transportDate"].(time.Time); ok {
		updates = append(updates, fmt.Sprintf("transport_date = $%d", argIndex))
		args = append(args, date)
		argIndex++
	}
	if payout, ok := updateFields["payoutPerTon"].(float64); ok {
		updates = append(updates, fmt.Sprintf("payout_per_ton = $%d", argIndex))
		args = append(args, payout)
		argIndex++
	}
	if destination, ok := updateFields["destination"].(string); ok && destination != "" {
		updates = append(updates, fmt.Sprintf("destination = $%d", argIndex))
		args = append(args, destination)
		argIndex++
	}
	if assignedAll, ok := updateFields["assignedAll"].(bool); ok {
		updates = append(updates, fmt.Sprintf("assigned_all = $%d", argIndex))
		args = append(args, assignedAll)
		argIndex++
	}
	if assignedIDs, ok := updateFields["assignedIds"].([]string); ok {
		updates = append(updates, fmt.Sprintf("assigned_ids = $%d", argIndex))
		args = append(args, assignedIDs)
		argIndex++
	}

	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no valid fields to update", models.ErrInvalidCount)
	}

	updateQuery := fmt.Sprintf(
		"UPDATE transport_request SET %s WHERE id = $1 RETURNING %s",
		strings.Join(updates, ", "), requestColumns)
	return scanRequest(r.DB.QueryRow(ctx, updateQuery, args...))
}

// UpdateRequestStatus changes the administrative status of a request.
func (r *PostgresRequestRepository) UpdateRequestStatus(ctx context.Context, requestID string, status models.RequestStatus) (*models.TransportRequest, error) {
	query := `UPDATE transport_request SET status = $1 WHERE id = $2 RETURNING ` + requestColumns
	return scanRequest(r.DB.QueryRow(ctx, query, status, requestID))
}

// DeleteRequest hard-deletes a request, refusing while any acceptance
// still references it.
func (r *PostgresRequestRepository) DeleteRequest(ctx context.Context, requestID string) error {
	deleteQuery := `DELETE FROM transport_request
	                WHERE id = $1
	                AND NOT EXISTS (SELECT 1 FROM transport_acceptance WHERE request_id = $1)`
	tag, err := r.DB.Exec(ctx, deleteQuery, requestID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		existsQuery := `SELECT EXISTS(SELECT 1 FROM transport_request WHERE id = $1)`
		if err := r.DB.QueryRow(ctx, existsQuery, requestID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: transport request", models.ErrNotFound)
		}
		return fmt.Errorf("%w: request has acceptances", models.ErrConflict)
	}
	return nil
}
