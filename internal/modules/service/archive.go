package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/infra/blob"
	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/modules/repo"
	"github.com/havenline/casekeeper/internal/pkg/crypt"
	"github.com/havenline/casekeeper/internal/pkg/retention"
)

// BlobStore is what the archive workflow needs from object storage.
// *blob.S3Deps satisfies it; tests substitute an in-memory fake.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type ArchiveService interface {
	// Create snapshots a closed session with all its notes, encrypts the
	// snapshot, uploads it, and commits the metadata record. Committing the
	// record is what flips the session to archived; an upload without a
	// committed record is an orphan blob, never a partial archive.
	Create(ctx context.Context, sessionID uuid.UUID, actor *model.Actor, tier retention.Tier) (*model.ArchiveRecord, error)

	// Retrieve downloads, decrypts, and integrity-checks an archive.
	Retrieve(ctx context.Context, archiveID uuid.UUID, actor *model.Actor) (*model.ArchivePayload, *model.ArchiveRecord, error)

	// Delete removes an archive permanently, metadata record first so a
	// blob-store failure can only ever leave an unreferenced blob behind.
	// Idempotent: deleting a missing archive succeeds.
	Delete(ctx context.Context, archiveID uuid.UUID, actor *model.Actor) error

	// DeleteExpired is the retention sweeper's entry point. The expiry is
	// re-checked transactionally against cutoff, so an extension that landed
	// after the sweep listed the candidate wins.
	DeleteExpired(ctx context.Context, archiveID uuid.UUID, cutoff time.Time) (bool, error)

	Get(ctx context.Context, archiveID uuid.UUID) (*model.ArchiveRecord, error)

	// ChangeRetention switches tier (recomputing expiry from the archive's
	// creation time) or extends the current expiry by extendDays.
	ChangeRetention(ctx context.Context, archiveID uuid.UUID, actor *model.Actor, tier retention.Tier, extendDays int) (*model.ArchiveRecord, error)

	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ArchiveRecord, error)
}

type archiveService struct {
	archives repo.ArchiveRepo
	sessions repo.SessionRepo
	notes    repo.NoteRepo
	store    BlobStore
	policy   retention.Policy
	log      *zap.Logger
	pub      AuditPublisher
	cfg      *config.Config
}

func NewArchiveService(
	archives repo.ArchiveRepo,
	sessions repo.SessionRepo,
	notes repo.NoteRepo,
	store BlobStore,
	log *zap.Logger,
	pub AuditPublisher,
	cfg *config.Config,
) ArchiveService {
	policy := retention.Policy{
		StandardDays:  cfg.Retention.StandardDays,
		PermanentDays: cfg.Retention.PermanentDays,
	}
	return &archiveService{
		archives: archives,
		sessions: sessions,
		notes:    notes,
		store:    store,
		policy:   policy,
		log:      log,
		pub:      pub,
		cfg:      cfg,
	}
}

func (s *archiveService) kdfParams() crypt.KDFParams {
	return crypt.KDFParams{
		Time:     s.cfg.Archive.KDFTime,
		MemoryMB: s.cfg.Archive.KDFMemoryMB,
		Threads:  s.cfg.Archive.KDFThreads,
	}
}

// aadFor binds ciphertext to the session/archive pair it was sealed for, so
// a blob copied under another archive's key fails authentication.
func aadFor(sessionID, archiveID uuid.UUID) []byte {
	return []byte(sessionID.String() + "|" + archiveID.String())
}

func (s *archiveService) storageKey(sessionID, archiveID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s", s.cfg.S3.KeyPrefix, sessionID.String(), archiveID.String())
}

func (s *archiveService) Create(ctx context.Context, sessionID uuid.UUID, actor *model.Actor, tier retention.Tier) (*model.ArchiveRecord, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	if !retention.Valid(tier) {
		return nil, fmt.Errorf("%w: %q", retention.ErrUnknownTier, tier)
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	switch session.Status {
	case model.StatusArchived:
		return nil, ErrAlreadyArchived
	case model.StatusClosed:
	default:
		return nil, fmt.Errorf("%w: status %s", ErrInvalidState, session.Status)
	}

	notes, err := s.notes.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payload := model.ArchivePayload{
		Session:    *session,
		Notes:      notes,
		ArchivedAt: now,
	}
	plaintext, err := sonic.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("serialize archive payload: %w", err)
	}
	sum := sha256.Sum256(plaintext)

	archiveID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	salt, err := crypt.NewSalt()
	if err != nil {
		return nil, err
	}
	key := crypt.DeriveKey([]byte(s.cfg.Archive.MasterKey), salt, s.kdfParams())
	ciphertext, nonce, err := crypt.Seal(plaintext, key, aadFor(sessionID, archiveID))
	if err != nil {
		return nil, err
	}

	expiresAt, err := s.policy.Expiry(tier, now)
	if err != nil {
		return nil, err
	}

	storageKey := s.storageKey(sessionID, archiveID)
	if err := s.store.Put(ctx, storageKey, ciphertext); err != nil {
		s.log.Error("archive blob upload failed",
			zap.String("session_id", sessionID.String()),
			zap.String("storage_key", storageKey),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	rec := &model.ArchiveRecord{
		ID:         archiveID,
		SessionID:  sessionID,
		Tier:       string(tier),
		StorageKey: storageKey,
		Checksum:   hex.EncodeToString(sum[:]),
		KDFSalt:    base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CreatedBy:  actor.Identifier,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}

	endedAt := now
	if session.EndedAt != nil {
		endedAt = *session.EndedAt
	}
	if err := s.archives.CreateAndMarkArchived(ctx, rec, endedAt); err != nil {
		// the metadata commit lost or failed: remove the uploaded blob so no
		// unreferenced ciphertext accumulates
		if delErr := s.store.Delete(ctx, storageKey); delErr != nil {
			s.log.Warn("orphan archive blob left after failed commit",
				zap.String("storage_key", storageKey),
				zap.Error(delErr))
		}
		if errors.Is(err, repo.ErrStaleStatus) {
			current, gerr := s.sessions.Get(ctx, sessionID)
			if gerr == nil && current.Status == model.StatusArchived {
				return nil, ErrAlreadyArchived
			}
			return nil, fmt.Errorf("%w: session left closed state", ErrInvalidState)
		}
		return nil, err
	}

	archiveIDCopy := rec.ID
	publishAudit(ctx, s.pub, s.log, s.cfg.RabbitMQ.AuditExchange, s.cfg.RabbitMQ.RoutingKey.ArchiveLifecycle, AuditEvent{
		Action:    "archive.create",
		SessionID: sessionID,
		ArchiveID: &archiveIDCopy,
		ActorID:   actor.Identifier,
		Detail:    string(tier),
	})
	s.log.Info("session archived",
		zap.String("session_id", sessionID.String()),
		zap.String("archive_id", rec.ID.String()),
		zap.String("tier", rec.Tier),
		zap.Time("expires_at", rec.ExpiresAt))

	return rec, nil
}

func (s *archiveService) Get(ctx context.Context, archiveID uuid.UUID) (*model.ArchiveRecord, error) {
	rec, err := s.archives.GetByID(ctx, archiveID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *archiveService) Retrieve(ctx context.Context, archiveID uuid.UUID, actor *model.Actor) (*model.ArchivePayload, *model.ArchiveRecord, error) {
	if !actor.Privileged() {
		return nil, nil, ErrForbidden
	}
	rec, err := s.Get(ctx, archiveID)
	if err != nil {
		return nil, nil, err
	}

	ciphertext, err := s.store.Get(ctx, rec.StorageKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			// metadata without a blob is a broken invariant, not a 404
			s.log.Error("archive blob missing for committed record",
				zap.String("archive_id", archiveID.String()),
				zap.String("storage_key", rec.StorageKey))
			return nil, nil, fmt.Errorf("%w: blob missing", ErrIntegrity)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	salt, err := base64.StdEncoding.DecodeString(rec.KDFSalt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: corrupt kdf salt", ErrIntegrity)
	}
	nonce, err := base64.StdEncoding.DecodeString(rec.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: corrupt nonce", ErrIntegrity)
	}

	key := crypt.DeriveKey([]byte(s.cfg.Archive.MasterKey), salt, s.kdfParams())
	plaintext, err := crypt.Open(ciphertext, nonce, key, aadFor(rec.SessionID, rec.ID))
	if err != nil {
		s.log.Error("archive decryption failed, possible tampering or key mismatch",
			zap.String("archive_id", archiveID.String()),
			zap.String("storage_key", rec.StorageKey))
		return nil, nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	sum := sha256.Sum256(plaintext)
	if hex.EncodeToString(sum[:]) != rec.Checksum {
		s.log.Error("archive checksum mismatch after decrypt",
			zap.String("archive_id", archiveID.String()))
		return nil, nil, fmt.Errorf("%w: checksum mismatch", ErrIntegrity)
	}

	var payload model.ArchivePayload
	if err := sonic.Unmarshal(plaintext, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: undecodable payload", ErrIntegrity)
	}
	return &payload, rec, nil
}

func (s *archiveService) Delete(ctx context.Context, archiveID uuid.UUID, actor *model.Actor) error {
	if !actor.Privileged() {
		return ErrForbidden
	}

	rec, err := s.archives.DeleteRecord(ctx, archiveID, time.Time{})
	if err != nil {
		return err
	}
	if rec == nil {
		// already gone; repeated deletes succeed
		return nil
	}

	s.cleanupBlob(ctx, rec)

	archiveIDCopy := rec.ID
	publishAudit(ctx, s.pub, s.log, s.cfg.RabbitMQ.AuditExchange, s.cfg.RabbitMQ.RoutingKey.ArchiveLifecycle, AuditEvent{
		Action:    "archive.delete",
		SessionID: rec.SessionID,
		ArchiveID: &archiveIDCopy,
		ActorID:   actor.Identifier,
	})
	return nil
}

func (s *archiveService) DeleteExpired(ctx context.Context, archiveID uuid.UUID, cutoff time.Time) (bool, error) {
	rec, err := s.archives.DeleteRecord(ctx, archiveID, cutoff)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	s.cleanupBlob(ctx, rec)

	archiveIDCopy := rec.ID
	publishAudit(ctx, s.pub, s.log, s.cfg.RabbitMQ.AuditExchange, s.cfg.RabbitMQ.RoutingKey.ArchiveLifecycle, AuditEvent{
		Action:    "archive.expire",
		SessionID: rec.SessionID,
		ArchiveID: &archiveIDCopy,
		ActorID:   "retention-sweeper",
		Detail:    rec.ExpiresAt.UTC().Format(time.RFC3339),
	})
	s.log.Info("expired archive removed",
		zap.String("archive_id", rec.ID.String()),
		zap.String("session_id", rec.SessionID.String()),
		zap.Time("expired_at", rec.ExpiresAt))
	return true, nil
}

// cleanupBlob removes the ciphertext after the metadata row is gone. A
// failure here leaves an unreferenced blob, which is harmless and logged;
// the delete already succeeded from the caller's point of view.
func (s *archiveService) cleanupBlob(ctx context.Context, rec *model.ArchiveRecord) {
	if err := s.store.Delete(ctx, rec.StorageKey); err != nil {
		s.log.Warn("orphan blob left behind after archive delete",
			zap.String("archive_id", rec.ID.String()),
			zap.String("storage_key", rec.StorageKey),
			zap.Error(err))
	}
}

func (s *archiveService) ChangeRetention(ctx context.Context, archiveID uuid.UUID, actor *model.Actor, tier retention.Tier, extendDays int) (*model.ArchiveRecord, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}

	rec, err := s.Get(ctx, archiveID)
	if err != nil {
		return nil, err
	}

	newTier := retention.Tier(rec.Tier)
	newExpiry := rec.ExpiresAt

	if tier != "" && tier != newTier {
		if !retention.Valid(tier) {
			return nil, fmt.Errorf("%w: %q", retention.ErrUnknownTier, tier)
		}
		newTier = tier
		newExpiry, err = s.policy.Expiry(newTier, rec.CreatedAt)
		if err != nil {
			return nil, err
		}
	}
	if extendDays > 0 {
		newExpiry = newExpiry.AddDate(0, 0, extendDays)
	}

	ok, err := s.archives.UpdateRetention(ctx, archiveID, string(newTier), newExpiry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	archiveIDCopy := rec.ID
	publishAudit(ctx, s.pub, s.log, s.cfg.RabbitMQ.AuditExchange, s.cfg.RabbitMQ.RoutingKey.RetentionChange, AuditEvent{
		Action:    "archive.retention_change",
		SessionID: rec.SessionID,
		ArchiveID: &archiveIDCopy,
		ActorID:   actor.Identifier,
		Detail:    fmt.Sprintf("tier=%s expires_at=%s", newTier, newExpiry.UTC().Format(time.RFC3339)),
	})

	return s.Get(ctx, archiveID)
}

func (s *archiveService) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ArchiveRecord, error) {
	return s.archives.ListExpired(ctx, now, limit)
}
