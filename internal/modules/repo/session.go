package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/havenline/casekeeper/internal/modules/model"
	"gorm.io/gorm"
)

type SessionRepo interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetActiveBySubject(ctx context.Context, subjectID string) (*model.Session, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListWithCursor(ctx context.Context, status string, afterCreatedAt time.Time, afterID uuid.UUID, limit int, timeDesc bool) ([]model.Session, error)

	// Close performs the active to closed transition and locks the session's
	// notes in one transaction: a single-row compare-and-swap on status, so
	// a racing reopen/close/archive serializes to exactly one winner.
	// Returns false when the session was not active.
	Close(ctx context.Context, id uuid.UUID, endedAt time.Time, summary string) (bool, error)

	// Reopen performs closed to active, clears ended_at and the closure
	// summary, and releases session-wide note locks (manual locks stay).
	// Returns false when the session was not closed.
	Reopen(ctx context.Context, id uuid.UUID) (bool, error)

	// SetAssignment updates assignment, valid only while active or closed.
	SetAssignment(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (bool, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepo {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	var s model.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) GetActiveBySubject(ctx context.Context, subjectID string) (*model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND status = ?", subjectID, model.StatusActive).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sessionRepo) ListWithCursor(ctx context.Context, status string, afterCreatedAt time.Time, afterID uuid.UUID, limit int, timeDesc bool) ([]model.Session, error) {
	q := r.db.WithContext(ctx).Model(&model.Session{})

	if status != "" {
		q = q.Where("status = ?", status)
	}

	// Apply cursor-based pagination filter if cursor is provided
	if !afterCreatedAt.IsZero() && afterID != uuid.Nil {
		comparisonOp := ">"
		if timeDesc {
			comparisonOp = "<"
		}
		q = q.Where(
			"(created_at "+comparisonOp+" ?) OR (created_at = ? AND id "+comparisonOp+" ?)",
			afterCreatedAt, afterCreatedAt, afterID,
		)
	}

	orderBy := "created_at ASC, id ASC"
	if timeDesc {
		orderBy = "created_at DESC, id DESC"
	}

	var sessions []model.Session
	return sessions, q.Order(orderBy).Limit(limit).Find(&sessions).Error
}

func (r *sessionRepo) Close(ctx context.Context, id uuid.UUID, endedAt time.Time, summary string) (bool, error) {
	var closed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Session{}).
			Where("id = ? AND status = ?", id, model.StatusActive).
			Updates(map[string]any{
				"status":   model.StatusClosed,
				"ended_at": endedAt,
				"summary":  summary,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&model.Note{}).
			Where("session_id = ? AND locked = false", id).
			Update("locked", true).Error; err != nil {
			return err
		}

		closed = true
		return nil
	})
	return closed, err
}

func (r *sessionRepo) Reopen(ctx context.Context, id uuid.UUID) (bool, error) {
	var reopened bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Session{}).
			Where("id = ? AND status = ?", id, model.StatusClosed).
			Updates(map[string]any{
				"status":   model.StatusActive,
				"ended_at": nil,
				"summary":  "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&model.Note{}).
			Where("session_id = ? AND locked = true AND manual_lock = false", id).
			Update("locked", false).Error; err != nil {
			return err
		}

		reopened = true
		return nil
	})
	return reopened, err
}

func (r *sessionRepo) SetAssignment(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ? AND status IN ?", id, []string{model.StatusActive, model.StatusClosed}).
		Update("assigned_actor_id", actorID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
