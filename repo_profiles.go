package access

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles is the store for per-user application profiles.
type Profiles interface {
	repository.Repository[*Profile]

	GetByUserID(ctx context.Context, userID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
	SetActiveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, active bool) error
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var _ Profiles = (*profiles)(nil)

// NewProfilesRepository builds the default bun-backed profile store.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (r *profiles) GetByUserID(ctx context.Context, userID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error) {
	return r.GetByUserIDTx(ctx, r.db, userID, criteria...)
}

func (r *profiles) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error) {
	record := &Profile{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.user_id = ?", userID).
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

func (r *profiles) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return r.SetActiveTx(ctx, r.db, userID, active)
}

func (r *profiles) SetActiveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, active bool) error {
	res, err := tx.NewUpdate().
		Model((*Profile)(nil)).
		Set("ativo = ?", active).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"user_id": userID.String(),
			})
	}

	return nil
}
