package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/havenline/casekeeper/internal/modules/model"
	"gorm.io/gorm"
)

type NoteRepo interface {
	Create(ctx context.Context, n *model.Note) error
	Get(ctx context.Context, id uuid.UUID) (*model.Note, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Note, error)

	// UpdateContentCAS is the optimistic-concurrency write: a single
	// conditional UPDATE on (id, version, locked=false). Returns false when
	// zero rows matched, stale version, locked note, or missing note; the
	// caller re-reads to classify.
	UpdateContentCAS(ctx context.Context, id uuid.UUID, expectedVersion int, content string) (bool, error)

	// SetLocked flips an individual note's lock. manual marks locks placed
	// deliberately on one note so they survive a session-wide unlock.
	// Session-wide lock flips happen inside the session repo's close/reopen
	// transactions.
	SetLocked(ctx context.Context, id uuid.UUID, locked, manual bool) (bool, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

type noteRepo struct {
	db *gorm.DB
}

func NewNoteRepo(db *gorm.DB) NoteRepo {
	return &noteRepo{db: db}
}

func (r *noteRepo) Create(ctx context.Context, n *model.Note) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *noteRepo) Get(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	var n model.Note
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *noteRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Note, error) {
	var notes []model.Note
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&notes).Error
	return notes, err
}

func (r *noteRepo) UpdateContentCAS(ctx context.Context, id uuid.UUID, expectedVersion int, content string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Note{}).
		Where("id = ? AND version = ? AND locked = false", id, expectedVersion).
		Updates(map[string]any{
			"content":    content,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *noteRepo) SetLocked(ctx context.Context, id uuid.UUID, locked, manual bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Note{}).
		Where("id = ?", id).
		Updates(map[string]any{"locked": locked, "manual_lock": manual})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *noteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Note{}).Error
}
