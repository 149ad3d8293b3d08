package access

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the store for role assignments.
type Roles interface {
	repository.Repository[*RoleAssignment]

	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*RoleAssignment, error)
	FindByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*RoleAssignment, error)
	Grant(ctx context.Context, userID uuid.UUID, role UserRole) (*RoleAssignment, error)
	GrantTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role UserRole) (*RoleAssignment, error)
}

type roles struct {
	repository.Repository[*RoleAssignment]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

// NewRolesRepository builds the default bun-backed role store.
func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*RoleAssignment](db, repository.ModelHandlers[*RoleAssignment]{
		NewRecord: func() *RoleAssignment { return &RoleAssignment{} },
		GetID: func(a *RoleAssignment) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *RoleAssignment, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (r *roles) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*RoleAssignment, error) {
	return r.FindByUserIDTx(ctx, r.db, userID)
}

func (r *roles) FindByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*RoleAssignment, error) {
	var records []*RoleAssignment

	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *roles) Grant(ctx context.Context, userID uuid.UUID, role UserRole) (*RoleAssignment, error) {
	return r.GrantTx(ctx, r.db, userID, role)
}

func (r *roles) GrantTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, role UserRole) (*RoleAssignment, error) {
	record := &RoleAssignment{
		UserID: userID,
		Role:   role,
	}

	return r.Repository.CreateTx(ctx, tx, record)
}
