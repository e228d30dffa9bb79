package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"groupwire/internal/domain"
)

// GroupRepository define el contrato de persistencia para grupos.
type GroupRepository interface {
	Create(ctx context.Context, group domain.Group) error
	GetAll(ctx context.Context) ([]domain.Group, error)
	GetByID(ctx context.Context, id string) (domain.Group, error)
	GetByName(ctx context.Context, name string) (domain.Group, error)
}

var ErrGroupNotFound = errors.New("group not found")

// PgGroupRepository implementa GroupRepository usando pgxpool.
type PgGroupRepository struct {
	pool *pgxpool.Pool
}

func NewPgGroupRepository(pool *pgxpool.Pool) *PgGroupRepository {
	return &PgGroupRepository{pool: pool}
}

func (r *PgGroupRepository) Create(ctx context.Context, group domain.Group) error {
	const query = `
		INSERT INTO groups (id, name, active, archived, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		group.ID,
		group.Name,
		group.Active,
		group.Archived,
		group.CreatedAt,
	)
	return err
}

func (r *PgGroupRepository) GetAll(ctx context.Context) ([]domain.Group, error) {
	const query = `
		SELECT id, name, active, archived, created_at
		FROM groups
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Active, &g.Archived, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *PgGroupRepository) GetByID(ctx context.Context, id string) (domain.Group, error) {
	const query = `
		SELECT id, name, active, archived, created_at
		FROM groups
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *PgGroupRepository) GetByName(ctx context.Context, name string) (domain.Group, error) {
	const query = `
		SELECT id, name, active, archived, created_at
		FROM groups
		WHERE name = $1
	`
	return r.scanOne(ctx, query, name)
}

func (r *PgGroupRepository) scanOne(ctx context.Context, query string, arg any) (domain.Group, error) {
	var g domain.Group
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&g.ID,
		&g.Name,
		&g.Active,
		&g.Archived,
		&g.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Group{}, ErrGroupNotFound
	}
	return g, err
}
