package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/modules/repo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionService interface {
	// Ingest creates a session for the subject or folds the event into the
	// subject's existing active session. Idempotent per subject + active
	// session: one logical incident, one session.
	Ingest(ctx context.Context, in IngestInput) (*model.Session, bool, error)

	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	List(ctx context.Context, in ListSessionsInput) (*ListSessionsOutput, error)

	// Close transitions active to closed and locks all notes. Any actor on
	// the team may close; reopening is the privileged edge.
	Close(ctx context.Context, id uuid.UUID, actor *model.Actor, summary string) (*model.Session, error)

	// Reopen transitions closed to active. Privileged only.
	Reopen(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Session, error)

	Assign(ctx context.Context, id uuid.UUID, actor *model.Actor, assignee string) (*model.Session, error)
	Unassign(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Session, error)
}

type sessionService struct {
	sessions repo.SessionRepo
	actors   repo.ActorRepo
	log      *zap.Logger
	pub      AuditPublisher
	cfg      *config.Config
}

func NewSessionService(sessions repo.SessionRepo, actors repo.ActorRepo, log *zap.Logger, pub AuditPublisher, cfg *config.Config) SessionService {
	return &sessionService{
		sessions: sessions,
		actors:   actors,
		log:      log,
		pub:      pub,
		cfg:      cfg,
	}
}

type IngestInput struct {
	SubjectID string
	Severity  model.Severity
	Payload   map[string]any
	Source    string
}

func (s *sessionService) Ingest(ctx context.Context, in IngestInput) (*model.Session, bool, error) {
	if in.SubjectID == "" {
		return nil, false, fmt.Errorf("%w: empty subject id", ErrInvalidState)
	}
	if !model.ValidSeverity(in.Severity) {
		return nil, false, fmt.Errorf("%w: unknown severity %q", ErrInvalidState, in.Severity)
	}

	existing, err := s.sessions.GetActiveBySubject(ctx, in.SubjectID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if existing != nil {
		folded, err := s.fold(ctx, existing, in)
		return folded, false, err
	}

	session := &model.Session{
		SubjectID:  in.SubjectID,
		Severity:   in.Severity,
		Status:     model.StatusActive,
		StartedAt:  time.Now().UTC(),
		EventCount: 1,
		LastEvent:  datatypes.JSONMap(in.Payload),
		CreatedBy:  in.Source,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// a concurrent ingest opened the session between our lookup and
			// the insert; the partial unique index rejected the second row,
			// fold into the winner
			winner, gerr := s.sessions.GetActiveBySubject(ctx, in.SubjectID)
			if gerr != nil {
				return nil, false, gerr
			}
			folded, ferr := s.fold(ctx, winner, in)
			return folded, false, ferr
		}
		return nil, false, err
	}
	return session, true, nil
}

// fold absorbs one more event into an existing active session.
func (s *sessionService) fold(ctx context.Context, existing *model.Session, in IngestInput) (*model.Session, error) {
	updates := map[string]any{
		"event_count": gorm.Expr("event_count + 1"),
		"last_event":  datatypes.JSONMap(in.Payload),
	}
	// later events may raise severity, never lower it
	if !model.SeverityAtLeast(existing.Severity, in.Severity) {
		updates["severity"] = in.Severity
	}
	if err := s.sessions.Update(ctx, existing.ID, updates); err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx, existing.ID)
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

type ListSessionsInput struct {
	Status   string
	Limit    int
	Cursor   string
	TimeDesc bool
}

type ListSessionsOutput struct {
	Items      []model.Session `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (s *sessionService) List(ctx context.Context, in ListSessionsInput) (*ListSessionsOutput, error) {
	afterCreatedAt, afterID, err := decodeCursor(in.Cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	items, err := s.sessions.ListWithCursor(ctx, in.Status, afterCreatedAt, afterID, in.Limit, in.TimeDesc)
	if err != nil {
		return nil, err
	}

	out := &ListSessionsOutput{Items: items}
	if len(items) == in.Limit && in.Limit > 0 {
		last := items[len(items)-1]
		out.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return out, nil
}

func (s *sessionService) Close(ctx context.Context, id uuid.UUID, actor *model.Actor, summary string) (*model.Session, error) {
	closed, err := s.sessions.Close(ctx, id, time.Now().UTC(), summary)
	if err != nil {
		return nil, err
	}
	if !closed {
		// not active: distinguish missing from wrong-state, and hand back the
		// current row so the caller sees what state won
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, ErrInvalidTransition
	}

	publishAudit(ctx, s.pub, s.log, s.cfg.RabbitMQ.AuditExchange, s.cfg.RabbitMQ.RoutingKey.SessionLifecycle, AuditEvent{
		Action:    "session.close",
		SessionID: id,
		ActorID:   actor.Identifier,
	})
	s.log.Info("session closed", zap.String("session_id", id.String()), zap.String("actor", actor.Identifier))

	return s.Get(ctx, id)
}

func (s *sessionService) Reopen(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Session, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}

	reopened, err := s.sessions.Reopen(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reopened {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, ErrInvalidTransition
	}

	publishAudit(ctx, s.pub, s.log, s.cfg.RabbitMQ.AuditExchange, s.cfg.RabbitMQ.RoutingKey.SessionLifecycle, AuditEvent{
		Action:    "session.reopen",
		SessionID: id,
		ActorID:   actor.Identifier,
	})
	s.log.Info("session reopened", zap.String("session_id", id.String()), zap.String("actor", actor.Identifier))

	return s.Get(ctx, id)
}

func (s *sessionService) Assign(ctx context.Context, id uuid.UUID, actor *model.Actor, assignee string) (*model.Session, error) {
	target, err := s.actors.GetByIdentifier(ctx, assignee)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: actor %q", ErrNotFound, assignee)
		}
		return nil, err
	}

	ok, err := s.sessions.SetAssignment(ctx, id, &target.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, ErrInvalidTransition
	}
	return s.Get(ctx, id)
}

func (s *sessionService) Unassign(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Session, error) {
	ok, err := s.sessions.SetAssignment(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, ErrInvalidTransition
	}
	return s.Get(ctx, id)
}

// ---------------------------------------------------------------------------
// Cursor helpers
// ---------------------------------------------------------------------------

func encodeCursor(createdAt time.Time, id uuid.UUID) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	if cursor == "" {
		return time.Time{}, uuid.Nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, errors.New("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return ts, id, nil
}
