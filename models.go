package access

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleViewer can only look at data shared with them
	RoleViewer UserRole = "viewer"
	// RoleProducer is a paying farm operator account
	RoleProducer UserRole = "producer"
	// RoleAdmin is platform staff; bypasses plan gating
	RoleAdmin UserRole = "admin"
	// RoleOwner is a platform superuser; bypasses plan gating
	RoleOwner UserRole = "owner"
)

// Profile is the per-user application profile. Column names follow the
// production schema, which predates this module.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid,unique" json:"user_id,omitempty"`
	FullName      string     `bun:"nome_completo" json:"nome_completo,omitempty"`
	FarmName      string     `bun:"nome_fazenda" json:"nome_fazenda,omitempty"`
	Active        bool       `bun:"ativo,notnull" json:"ativo"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RoleAssignment grants a role to a user. Users without a row default to
// RoleProducer for gating purposes.
type RoleAssignment struct {
	bun.BaseModel `bun:"table:user_roles,alias:url"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Role          UserRole   `bun:"role,notnull" json:"role,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Plan is a time-bounded subscription entitlement.
type Plan struct {
	bun.BaseModel `bun:"table:plans,alias:pln"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	PlanType      string     `bun:"tipo_plano,notnull" json:"tipo_plano,omitempty"`
	StartsAt      *time.Time `bun:"data_inicio,nullzero" json:"data_inicio,omitempty"`
	EndsAt        *time.Time `bun:"data_fim,nullzero" json:"data_fim,omitempty"`
	Active        bool       `bun:"ativo,notnull" json:"ativo"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsCurrent reports whether the plan entitles access at the given instant:
// active flag set and end date absent or in the future.
func (p *Plan) IsCurrent(now time.Time) bool {
	if p == nil || !p.Active {
		return false
	}
	if p.EndsAt == nil {
		return true
	}
	return p.EndsAt.After(now)
}
