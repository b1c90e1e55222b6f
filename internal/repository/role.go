package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

// bootstrapLockKey identifies the advisory lock taken while granting the first admin.
const bootstrapLockKey int64 = 0x726f6c6573

type RoleRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.UserRole, error)
	Upsert(ctx context.Context, userID uuid.UUID, role model.Role) error
	// BootstrapAdmin grants admin to userID only if no admin exists yet.
	// It reports whether the grant happened.
	BootstrapAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

type pgRoleRepo struct {
	pool *pgxpool.Pool
	tx   Transactor
}

func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &pgRoleRepo{pool: pool, tx: NewTransactor(pool)}
}

func (r *pgRoleRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.UserRole, error) {
	ur := &model.UserRole{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, user_id, role FROM user_roles WHERE user_id = $1`, userID,
	).Scan(&ur.ID, &ur.UserID, &ur.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user role: %w", err)
	}
	return ur, nil
}

func (r *pgRoleRepo) Upsert(ctx context.Context, userID uuid.UUID, role model.Role) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO user_roles (id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`,
		uuid.New(), userID, role,
	)
	if err != nil {
		return fmt.Errorf("upsert user role: %w", err)
	}
	return nil
}

func (r *pgRoleRepo) BootstrapAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	granted := false
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.pool)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
			return fmt.Errorf("lock role bootstrap: %w", err)
		}

		var exists bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_roles WHERE role = 'admin')`,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check admin exists: %w", err)
		}
		if exists {
			return nil
		}

		if err := r.Upsert(ctx, userID, model.RoleAdmin); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}
