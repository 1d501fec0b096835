package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/havenline/casekeeper/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleStatus is returned when the session row was not in the expected
// status at commit time, a concurrent transition won the race.
var ErrStaleStatus = errors.New("repo: session status changed concurrently")

type ArchiveRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ArchiveRecord, error)
	GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.ArchiveRecord, error)

	// CreateAndMarkArchived is the commit point of archive creation: in one
	// transaction it inserts the metadata record and flips the session
	// closed to archived via conditional update. If the session is no longer
	// closed the whole transaction rolls back with ErrStaleStatus and the
	// caller compensates by removing the already-uploaded blob.
	CreateAndMarkArchived(ctx context.Context, rec *model.ArchiveRecord, endedAt time.Time) error

	// UpdateRetention rewrites tier and the recomputed expires_at.
	UpdateRetention(ctx context.Context, id uuid.UUID, tier string, expiresAt time.Time) (bool, error)

	// DeleteRecord removes the metadata row with a single conditional
	// DELETE ... RETURNING. When onlyIfExpiredBy is non-zero, deletion
	// happens only if expires_at < onlyIfExpiredBy, checked in the DELETE's
	// own predicate so a concurrent retention extension is never overridden
	// by a stale sweep snapshot. Returns the removed record (for blob
	// cleanup) or nil when nothing was deleted; of two racing deletes
	// exactly one gets the record back.
	DeleteRecord(ctx context.Context, id uuid.UUID, onlyIfExpiredBy time.Time) (*model.ArchiveRecord, error)

	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ArchiveRecord, error)
}

type archiveRepo struct {
	db *gorm.DB
}

func NewArchiveRepo(db *gorm.DB) ArchiveRepo {
	return &archiveRepo{db: db}
}

func (r *archiveRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ArchiveRecord, error) {
	var rec model.ArchiveRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *archiveRepo) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.ArchiveRecord, error) {
	var rec model.ArchiveRecord
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *archiveRepo) CreateAndMarkArchived(ctx context.Context, rec *model.ArchiveRecord, endedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		res := tx.Model(&model.Session{}).
			Where("id = ? AND status = ?", rec.SessionID, model.StatusClosed).
			Updates(map[string]any{
				"status":   model.StatusArchived,
				"ended_at": endedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}
		return nil
	})
}

func (r *archiveRepo) UpdateRetention(ctx context.Context, id uuid.UUID, tier string, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ArchiveRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"tier": tier, "expires_at": expiresAt})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *archiveRepo) DeleteRecord(ctx context.Context, id uuid.UUID, onlyIfExpiredBy time.Time) (*model.ArchiveRecord, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if !onlyIfExpiredBy.IsZero() {
		// expiry re-checked at delete time, not at sweep-listing time
		q = q.Where("expires_at < ?", onlyIfExpiredBy)
	}

	var rec model.ArchiveRecord
	res := q.Clauses(clause.Returning{}).Delete(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// already gone or retention extended, idempotent no-op
		return nil, nil
	}
	return &rec, nil
}

func (r *archiveRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ArchiveRecord, error) {
	var recs []model.ArchiveRecord
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
