package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupTestDB creates a test database connection for repo tests
func setupTestDB(t *testing.T) *gorm.DB {
	// Skip if no test database is configured
	dsn := "host=localhost user=casekeeper password=helloworld dbname=casekeeper port=15432 sslmode=disable"
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Skip("Test database not available, skipping integration tests")
		return nil
	}

	db.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto")

	err = db.AutoMigrate(
		&model.Actor{},
		&model.Session{},
		&model.Note{},
		&model.ArchiveRecord{},
	)
	require.NoError(t, err)

	return db
}

func cleanupSession(db *gorm.DB, sessionID uuid.UUID) {
	db.Exec("DELETE FROM archive_records WHERE session_id = ?", sessionID)
	db.Exec("DELETE FROM notes WHERE session_id = ?", sessionID)
	db.Exec("DELETE FROM sessions WHERE id = ?", sessionID)
}

func createTestActor(t *testing.T, db *gorm.DB) *model.Actor {
	actor := &model.Actor{
		ID:         uuid.New(),
		Identifier: "test-" + uuid.NewString()[:8],
		Role:       model.RoleMember,
		TokenHMAC:  uuid.NewString(),
	}
	require.NoError(t, db.Create(actor).Error)
	return actor
}

func createActiveSession(t *testing.T, db *gorm.DB) *model.Session {
	session := &model.Session{
		ID:        uuid.New(),
		SubjectID: "subject-" + uuid.NewString()[:8],
		Severity:  model.SeverityHigh,
		Status:    model.StatusActive,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(session).Error)
	return session
}

func TestSessionRepo_OneActiveSessionPerSubject(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	ctx := context.Background()
	sessions := NewSessionRepo(db)
	session := createActiveSession(t, db)
	defer cleanupSession(db, session.ID)

	dup := &model.Session{
		ID:        uuid.New(),
		SubjectID: session.SubjectID,
		Severity:  model.SeverityLow,
		Status:    model.StatusActive,
		StartedAt: time.Now().UTC(),
	}
	defer cleanupSession(db, dup.ID)

	// the partial unique index rejects a second active row for the subject
	err := db.Create(dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// once the first session leaves the active state, a new one may open
	closed, err := sessions.Close(ctx, session.ID, time.Now().UTC(), "")
	require.NoError(t, err)
	require.True(t, closed)
	require.NoError(t, db.Create(dup).Error)
}

func TestSessionRepo_CloseLocksNotes(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	ctx := context.Background()
	sessions := NewSessionRepo(db)
	actor := createTestActor(t, db)
	session := createActiveSession(t, db)
	defer cleanupSession(db, session.ID)
	defer db.Delete(actor)

	note := &model.Note{ID: uuid.New(), SessionID: session.ID, AuthorID: actor.ID, Content: "n", Version: 1}
	require.NoError(t, db.Create(note).Error)

	closed, err := sessions.Close(ctx, session.ID, time.Now().UTC(), "done")
	require.NoError(t, err)
	assert.True(t, closed)

	var got model.Note
	require.NoError(t, db.First(&got, "id = ?", note.ID).Error)
	assert.True(t, got.Locked, "closing a session locks its notes")

	// second close matches no row
	closed, err = sessions.Close(ctx, session.ID, time.Now().UTC(), "again")
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestSessionRepo_ReopenKeepsManualLocks(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	ctx := context.Background()
	sessions := NewSessionRepo(db)
	notes := NewNoteRepo(db)
	actor := createTestActor(t, db)
	session := createActiveSession(t, db)
	defer cleanupSession(db, session.ID)
	defer db.Delete(actor)

	plain := &model.Note{ID: uuid.New(), SessionID: session.ID, AuthorID: actor.ID, Content: "a", Version: 1}
	pinned := &model.Note{ID: uuid.New(), SessionID: session.ID, AuthorID: actor.ID, Content: "b", Version: 1}
	require.NoError(t, db.Create(plain).Error)
	require.NoError(t, db.Create(pinned).Error)

	// one note is individually locked before the close
	ok, err := notes.SetLocked(ctx, pinned.ID, true, true)
	require.NoError(t, err)
	require.True(t, ok)

	closed, err := sessions.Close(ctx, session.ID, time.Now().UTC(), "")
	require.NoError(t, err)
	require.True(t, closed)

	reopened, err := sessions.Reopen(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, reopened)

	var gotPlain, gotPinned model.Note
	require.NoError(t, db.First(&gotPlain, "id = ?", plain.ID).Error)
	require.NoError(t, db.First(&gotPinned, "id = ?", pinned.ID).Error)
	assert.False(t, gotPlain.Locked, "session-wide lock is released on reopen")
	assert.True(t, gotPinned.Locked, "manual lock survives reopen")

	var gotSession model.Session
	require.NoError(t, db.First(&gotSession, "id = ?", session.ID).Error)
	assert.Equal(t, model.StatusActive, gotSession.Status)
	assert.Nil(t, gotSession.EndedAt)
	assert.Empty(t, gotSession.Summary)
}

func TestNoteRepo_UpdateContentCAS(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	ctx := context.Background()
	notes := NewNoteRepo(db)
	actor := createTestActor(t, db)
	session := createActiveSession(t, db)
	defer cleanupSession(db, session.ID)
	defer db.Delete(actor)

	note := &model.Note{ID: uuid.New(), SessionID: session.ID, AuthorID: actor.ID, Content: "v1", Version: 1}
	require.NoError(t, db.Create(note).Error)

	ok, err := notes.UpdateContentCAS(ctx, note.ID, 1, "v2")
	require.NoError(t, err)
	assert.True(t, ok)

	// a write carrying the stale version loses
	ok, err = notes.UpdateContentCAS(ctx, note.ID, 1, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	var got model.Note
	require.NoError(t, db.First(&got, "id = ?", note.ID).Error)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "v2", got.Content)
}

func TestArchiveRepo_CreateAndMarkArchived(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	ctx := context.Background()
	sessions := NewSessionRepo(db)
	archives := NewArchiveRepo(db)
	session := createActiveSession(t, db)
	defer cleanupSession(db, session.ID)

	rec := &model.ArchiveRecord{
		ID:         uuid.New(),
		SessionID:  session.ID,
		Tier:       "standard",
		StorageKey: "archives/test",
		Checksum:   "00",
		KDFSalt:    "c2FsdA==",
		Nonce:      "bm9uY2U=",
		ExpiresAt:  time.Now().UTC().AddDate(1, 0, 0),
	}

	// session is still active, commit must fail and roll back the insert
	err := archives.CreateAndMarkArchived(ctx, rec, time.Now().UTC())
	assert.ErrorIs(t, err, ErrStaleStatus)
	var count int64
	db.Model(&model.ArchiveRecord{}).Where("session_id = ?", session.ID).Count(&count)
	assert.Zero(t, count, "failed commit must not leave a metadata row")

	closed, err := sessions.Close(ctx, session.ID, time.Now().UTC(), "")
	require.NoError(t, err)
	require.True(t, closed)

	require.NoError(t, archives.CreateAndMarkArchived(ctx, rec, time.Now().UTC()))

	var gotSession model.Session
	require.NoError(t, db.First(&gotSession, "id = ?", session.ID).Error)
	assert.Equal(t, model.StatusArchived, gotSession.Status)
}

func TestArchiveRepo_DeleteRecordHonorsFreshExpiry(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	ctx := context.Background()
	sessions := NewSessionRepo(db)
	archives := NewArchiveRepo(db)
	session := createActiveSession(t, db)
	defer cleanupSession(db, session.ID)

	closed, err := sessions.Close(ctx, session.ID, time.Now().UTC(), "")
	require.NoError(t, err)
	require.True(t, closed)

	rec := &model.ArchiveRecord{
		ID:         uuid.New(),
		SessionID:  session.ID,
		Tier:       "standard",
		StorageKey: "archives/test",
		Checksum:   "00",
		KDFSalt:    "c2FsdA==",
		Nonce:      "bm9uY2U=",
		ExpiresAt:  time.Now().UTC().AddDate(0, 0, 30),
	}
	require.NoError(t, archives.CreateAndMarkArchived(ctx, rec, time.Now().UTC()))

	// the sweeper's cutoff is older than the (extended) expiry: no delete
	deleted, err := archives.DeleteRecord(ctx, rec.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, deleted)

	// unconditional delete removes it and is idempotent
	deleted, err = archives.DeleteRecord(ctx, rec.ID, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, rec.StorageKey, deleted.StorageKey)

	deleted, err = archives.DeleteRecord(ctx, rec.ID, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, deleted)
}
