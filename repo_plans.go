package access

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Plans is the store for subscription entitlements.
type Plans interface {
	repository.Repository[*Plan]

	FindCurrent(ctx context.Context, userID uuid.UUID, now time.Time) (*Plan, error)
	FindCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, now time.Time) (*Plan, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type plans struct {
	repository.Repository[*Plan]
	db *bun.DB
}

var _ Plans = (*plans)(nil)

// NewPlansRepository builds the default bun-backed plan store.
func NewPlansRepository(db *bun.DB) Plans {
	repo := repository.NewRepository[*Plan](db, repository.ModelHandlers[*Plan]{
		NewRecord: func() *Plan { return &Plan{} },
		GetID: func(p *Plan) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Plan, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &plans{
		Repository: repo,
		db:         db,
	}
}

func (r *plans) FindCurrent(ctx context.Context, userID uuid.UUID, now time.Time) (*Plan, error) {
	return r.FindCurrentTx(ctx, r.db, userID, now)
}

// FindCurrentTx returns the newest active plan whose end date is absent or
// in the future. Expired and flagged-off plans never match.
func (r *plans) FindCurrentTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, now time.Time) (*Plan, error) {
	record := &Plan{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.ativo = ?", true).
		Where("(?TableAlias.data_fim IS NULL OR ?TableAlias.data_fim > ?)", now).
		Order("data_fim DESC NULLS FIRST").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id": userID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *plans) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.DeactivateTx(ctx, r.db, id)
}

func (r *plans) DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*Plan)(nil)).
		Set("ativo = ?", false).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}
