package model

import (
	"time"

	"github.com/google/uuid"
)

// Note is an authored documentation entry attached to a session. Content is
// opaque versioned text; the editor collaborator coalesces rapid edits and
// submits at most one update per debounce window with the version it last
// observed. Version is the optimistic-concurrency token: updates are a
// single conditional UPDATE on (id, version, locked=false), so a stale
// writer loses deterministically instead of silently overwriting.
type Note struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index:idx_note_session_created,priority:1" json:"session_id"`

	AuthorID uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	Author   *Actor    `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:RESTRICT,OnUpdate:CASCADE;" json:"-"`

	Content string `gorm:"type:text;not null;default:''" json:"content"`
	Version int    `gorm:"not null;default:1" json:"version"`

	// Locked is forced true whenever the owning session is not active;
	// individually re-locked notes survive a session reopen.
	Locked bool `gorm:"not null;default:false" json:"locked"`

	// ManualLock marks a lock placed deliberately on this one note, as
	// opposed to the session-wide lock applied by close. Session reopen
	// clears session-wide locks only.
	ManualLock bool `gorm:"not null;default:false" json:"manual_lock"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP;index:idx_note_session_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Note <-> Session
	Session *Session `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Note) TableName() string { return "notes" }
