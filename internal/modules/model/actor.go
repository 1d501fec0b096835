package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is a type alias for actor role strings supplied by the identity
// collaborator. Using alias (=) so string literals remain assignable.
type Role = string

const (
	RoleMember Role = "member"
	RoleLead   Role = "lead"
	RoleAdmin  Role = "admin"
)

// Actor is an authenticated response-team principal. The identity provider
// owns enrollment; this table is the API's view of it: identifier, role and
// the bearer-token digests used to resolve requests to an actor.
type Actor struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Identifier  string    `gorm:"type:text;not null;uniqueIndex" json:"identifier"`
	DisplayName string    `gorm:"type:text;not null;default:''" json:"display_name"`
	Role        string    `gorm:"type:text;not null;default:'member';check:role IN ('member','lead','admin')" json:"role"`

	// Token digests; the raw token is never stored.
	TokenHMAC    string `gorm:"type:text;not null;uniqueIndex" json:"-"`
	TokenHashPHC string `gorm:"type:text;not null;default:''" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Actor) TableName() string { return "actors" }

// Privileged reports whether the actor may perform lead/admin operations.
func (a *Actor) Privileged() bool { return a.Role != RoleMember }

// Admin reports whether the actor holds the admin role.
func (a *Actor) Admin() bool { return a.Role == RoleAdmin }
