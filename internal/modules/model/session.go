package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ---------------------------------------------------------------------------
// Status and severity constants
// ---------------------------------------------------------------------------

// Status is the session lifecycle state. Transitions only ever move
// active to closed to archived, plus the single privileged closed to active
// reopen edge. archived is terminal. Using alias (=) so existing string
// literals remain assignable.
type Status = string

const (
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

// Severity classifies the incident that triggered the session. Assigned by
// the ingestion pipeline, may be raised by later events.
type Severity = string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeveritySafe     Severity = "safe"
)

// severityRank orders severities for "update never downgrades" ingestion.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeveritySafe:     0,
}

// SeverityAtLeast reports whether a ranks at or above b.
func SeverityAtLeast(a, b Severity) bool { return severityRank[a] >= severityRank[b] }

// ValidSeverity reports whether s is a known severity name.
func ValidSeverity(s Severity) bool {
	_, ok := severityRank[s]
	return ok
}

// ---------------------------------------------------------------------------
// Session model
// ---------------------------------------------------------------------------

// Session is one tracked crisis-response incident. One logical incident maps
// to at most one active session per subject; later events update it rather
// than duplicating. Sessions are never physically deleted, archival flips
// status and offloads an encrypted snapshot, the live row stays as metadata.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	// The partial unique index is what makes ingestion idempotent under
	// concurrency: at most one active session may exist per subject, a
	// racing insert fails with a duplicate-key error and folds instead.
	SubjectID string `gorm:"type:text;not null;index:idx_subject_status,priority:1;uniqueIndex:uniq_subject_active,where:status = 'active'" json:"subject_id"`

	Severity string `gorm:"type:text;not null;check:severity IN ('critical','high','medium','low','safe')" json:"severity"`
	Status   string `gorm:"type:text;not null;default:'active';check:status IN ('active','closed','archived');index:idx_subject_status,priority:2" json:"status"`

	AssignedActorID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_actor_id"`
	AssignedActor   *Actor     `gorm:"foreignKey:AssignedActorID;references:ID;constraint:OnDelete:SET NULL,OnUpdate:CASCADE;" json:"-"`

	// Summary is the closure summary, set by close and cleared by reopen.
	Summary string `gorm:"type:text;not null;default:''" json:"summary,omitempty"`

	StartedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	// EventCount counts ingestion events absorbed by this session.
	EventCount int `gorm:"not null;default:0" json:"event_count"`

	// LastEvent keeps the most recent ingestion payload for triage context.
	LastEvent datatypes.JSONMap `gorm:"type:jsonb" json:"last_event,omitempty"`

	CreatedBy string    `gorm:"type:text;not null;default:''" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Session <-> Note
	Notes []Note `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// Session <-> ArchiveRecord (at most one)
	Archive *ArchiveRecord `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Session) TableName() string { return "sessions" }
