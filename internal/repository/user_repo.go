package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kamenolom/transport-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the read side of the identity collaborator: users,
// transport access and driver groups. It satisfies assignment.Directory.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListTransportDrivers(ctx context.Context) ([]string, error)
	GetGroup(ctx context.Context, groupID string) (*models.DriverGroup, error)
}

// PostgresUserRepository is the UserRepository implementation for the database.
type PostgresUserRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository instance.
func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// GetUser returns one user by id.
func (r *PostgresUserRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, role, transport_access FROM app_user WHERE id = $1`
	err := r.DB.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &user.Role, &user.TransportAccess)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", models.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// ListTransportDrivers returns ids of drivers allowed to claim transports.
func (r *PostgresUserRepository) ListTransportDrivers(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM app_user WHERE role = $1 AND transport_access`
	rows, err := r.DB.Query(ctx, query, models.RoleDriver)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetGroup returns a driver group with its member ids, or
// models.ErrNotFound when the id is not a group.
func (r *PostgresUserRepository) GetGroup(ctx context.Context, groupID string) (*models.DriverGroup, error) {
	var group models.DriverGroup
	query := `SELECT id, name FROM driver_group WHERE id = $1`
	err := r.DB.QueryRow(ctx, query, groupID).Scan(&group.ID, &group.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: driver group", models.ErrNotFound)
		}
		return nil, err
	}

	memberQuery := `SELECT user_id FROM driver_group_member WHERE group_id = $1`
	rows, err := r.DB.Query(ctx, memberQuery, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		group.MemberUserIDs = append(group.MemberUserIDs, userID)
	}
	return &group, rows.Err()
}
