package model

import (
	"time"

	"github.com/google/uuid"
)

// ArchiveRecord is the metadata half of an archive. The record and the
// ciphertext blob at StorageKey exist together or not at all: the blob is
// uploaded first, the record is the commit point, and deletion removes the
// record before the blob. The derived encryption key is never stored, only
// the KDF salt and AEAD nonce needed to re-derive and open it.
type ArchiveRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`

	Tier string `gorm:"type:text;not null;check:tier IN ('standard','permanent')" json:"tier"`

	StorageKey string `gorm:"type:text;not null" json:"storage_key"`

	// Checksum is the hex SHA-256 of the plaintext snapshot, verified after
	// every decrypt.
	Checksum string `gorm:"type:text;not null" json:"checksum"`

	// KDFSalt and Nonce are base64; see internal/pkg/crypt.
	KDFSalt string `gorm:"type:text;not null" json:"-"`
	Nonce   string `gorm:"type:text;not null" json:"-"`

	CreatedBy string    `gorm:"type:text;not null;default:''" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// ArchiveRecord <-> Session
	Session *Session `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ArchiveRecord) TableName() string { return "archive_records" }

// ArchivePayload is the plaintext snapshot sealed into an archive blob: the
// full session record and every note regardless of individual lock state.
// The JSON serialization is stored encrypted in S3, do NOT change field
// names or json tags.
type ArchivePayload struct {
	Session    Session   `json:"session"`
	Notes      []Note    `json:"notes"`
	ArchivedAt time.Time `json:"archived_at"`
}
