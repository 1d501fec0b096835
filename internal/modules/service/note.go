package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/modules/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NoteService interface {
	// Create appends a note to an active session. Closed and archived
	// sessions reject new notes with ErrSessionLocked.
	Create(ctx context.Context, sessionID uuid.UUID, actor *model.Actor, content string) (*model.Note, error)

	Get(ctx context.Context, id uuid.UUID) (*model.Note, error)
	List(ctx context.Context, sessionID uuid.UUID) ([]model.Note, error)

	// Update rewrites the note content with optimistic concurrency: the
	// caller supplies the version it read, and a mismatch returns
	// ErrVersionConflict together with the current note so the caller can
	// merge and retry.
	Update(ctx context.Context, id uuid.UUID, actor *model.Actor, expectedVersion int, content string) (*model.Note, error)

	// Lock pins a note read-only independently of session state. A note
	// locked this way stays locked across a session reopen.
	Lock(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Note, error)

	// Unlock releases a note lock. Privileged only, and never available
	// once the owning session is archived.
	Unlock(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Note, error)

	// Delete removes a note permanently. Privileged only. Notes of an
	// archived session are immutable, deletion included; the archived copy
	// in the blob store is the record of what existed.
	Delete(ctx context.Context, id uuid.UUID, actor *model.Actor) error
}

type noteService struct {
	notes    repo.NoteRepo
	sessions repo.SessionRepo
	log      *zap.Logger
}

func NewNoteService(notes repo.NoteRepo, sessions repo.SessionRepo, log *zap.Logger) NoteService {
	return &noteService{notes: notes, sessions: sessions, log: log}
}

func (s *noteService) Create(ctx context.Context, sessionID uuid.UUID, actor *model.Actor, content string) (*model.Note, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.StatusActive {
		return nil, fmt.Errorf("%w: status %s", ErrSessionLocked, session.Status)
	}

	note := &model.Note{
		SessionID: sessionID,
		AuthorID:  actor.ID,
		Content:   content,
		Version:   1,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *noteService) Get(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	note, err := s.notes.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return note, nil
}

func (s *noteService) List(ctx context.Context, sessionID uuid.UUID) ([]model.Note, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.notes.ListBySession(ctx, sessionID)
}

func (s *noteService) Update(ctx context.Context, id uuid.UUID, actor *model.Actor, expectedVersion int, content string) (*model.Note, error) {
	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.AuthorID != actor.ID && !actor.Privileged() {
		return nil, ErrForbidden
	}
	if err := s.guardMutable(ctx, note); err != nil {
		return nil, err
	}

	ok, err := s.notes.UpdateContentCAS(ctx, id, expectedVersion, content)
	if err != nil {
		return nil, err
	}
	if !ok {
		// the conditional update matched nothing: refetch to tell a lost
		// version race apart from a note locked or deleted underneath us
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Locked {
			return nil, ErrNoteLocked
		}
		// return the current note alongside the conflict so the caller can
		// rebase its edit instead of guessing
		return current, ErrVersionConflict
	}

	return s.Get(ctx, id)
}

func (s *noteService) Lock(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Note, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardNotArchived(ctx, note.SessionID); err != nil {
		return nil, err
	}

	ok, err := s.notes.SetLocked(ctx, id, true, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *noteService) Unlock(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Note, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardNotArchived(ctx, note.SessionID); err != nil {
		return nil, err
	}

	ok, err := s.notes.SetLocked(ctx, id, false, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *noteService) Delete(ctx context.Context, id uuid.UUID, actor *model.Actor) error {
	if !actor.Privileged() {
		return ErrForbidden
	}
	note, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardNotArchived(ctx, note.SessionID); err != nil {
		return err
	}

	if err := s.notes.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("note deleted",
		zap.String("note_id", id.String()),
		zap.String("session_id", note.SessionID.String()),
		zap.String("actor", actor.Identifier))
	return nil
}

func (s *noteService) getSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

// guardMutable rejects edits to locked notes and to any note whose session
// has been archived.
func (s *noteService) guardMutable(ctx context.Context, note *model.Note) error {
	if err := s.guardNotArchived(ctx, note.SessionID); err != nil {
		return err
	}
	if note.Locked {
		return ErrNoteLocked
	}
	return nil
}

func (s *noteService) guardNotArchived(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == model.StatusArchived {
		return ErrSessionArchived
	}
	return nil
}
