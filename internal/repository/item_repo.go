package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kamenolom/transport-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ItemRepository is the persistence interface for delivery evidence.
type ItemRepository interface {
	GetItem(ctx context.Context, itemID string) (*models.DeliveryItem, error)
	ApproveItem(ctx context.Context, itemID string, approvedAt time.Time) (*models.DeliveryItem, error)
	LinkItem(ctx context.Context, itemID, acceptanceID, requestID string) (*models.DeliveryItem, error)
	CountLinkedApproved(ctx context.Context, acceptanceID string) (int, error)
	ListLinkedApproved(ctx context.Context, acceptanceID string) ([]models.DeliveryItem, error)
}

// PostgresItemRepository is the ItemRepository implementation for the database.
type PostgresItemRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresItemRepository creates a new PostgresItemRepository instance.
func NewPostgresItemRepository(db *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{DB: db}
}

const itemColumns = `id, registration, status, net_weight_kg, approved_at, transport_acceptance_id, linked_request_id, created_at`

func scanItem(row pgx.Row) (*models.DeliveryItem, error) {
	var item models.DeliveryItem
	err := row.Scan(
		&item.ID,
		&item.Registration,
		&item.Status,
		&item.NetWeightKg,
		&item.ApprovedAt,
		&item.AcceptanceID,
		&item.RequestID,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: delivery item", models.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

// GetItem returns one delivery item by id.
func (r *PostgresItemRepository) GetItem(ctx context.Context, itemID string) (*models.DeliveryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM delivery_item WHERE id = $1`
	return scanItem(r.DB.QueryRow(ctx, query, itemID))
}

// ApproveItem stamps the item approved.
func (r *PostgresItemRepository) ApproveItem(ctx context.Context, itemID string, approvedAt time.Time) (*models.DeliveryItem, error) {
	query := `UPDATE delivery_item SET status = $1, approved_at = $2 WHERE id = $3 RETURNING ` + itemColumns
	return scanItem(r.DB.QueryRow(ctx, query, models.ApprovedItem, approvedAt, itemID))
}

// LinkItem writes the back-references from an item to its acceptance.
func (r *PostgresItemRepository) LinkItem(ctx context.Context, itemID, acceptanceID, requestID string) (*models.DeliveryItem, error) {
	query := `UPDATE delivery_item SET transport_acceptance_id = $1, linked_request_id = $2
	          WHERE id = $3 RETURNING ` + itemColumns
	return scanItem(r.DB.QueryRow(ctx, query, acceptanceID, requestID, itemID))
}

// CountLinkedApproved counts approved items linked to one acceptance.
func (r *PostgresItemRepository) CountLinkedApproved(ctx context.Context, acceptanceID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM delivery_item WHERE transport_acceptance_id = $1 AND status = $2`
	err := r.DB.QueryRow(ctx, query, acceptanceID, models.ApprovedItem).Scan(&count)
	return count, err
}

// ListLinkedApproved returns the approved items linked to one acceptance.
func (r *PostgresItemRepository) ListLinkedApproved(ctx context.Context, acceptanceID string) ([]models.DeliveryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM delivery_item
	          WHERE transport_acceptance_id = $1 AND status = $2 ORDER BY approved_at`
	rows, err := r.DB.Query(ctx, query, acceptanceID, models.ApprovedItem)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.DeliveryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
