package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/modules/service"
	"github.com/havenline/casekeeper/internal/pkg/retention"
)

// MockArchiveService is a mock implementation of service.ArchiveService
type MockArchiveService struct {
	mock.Mock
}

func (m *MockArchiveService) Create(ctx context.Context, sessionID uuid.UUID, actor *model.Actor, tier retention.Tier) (*model.ArchiveRecord, error) {
	args := m.Called(ctx, sessionID, actor, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArchiveRecord), args.Error(1)
}

func (m *MockArchiveService) Retrieve(ctx context.Context, archiveID uuid.UUID, actor *model.Actor) (*model.ArchivePayload, *model.ArchiveRecord, error) {
	args := m.Called(ctx, archiveID, actor)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.ArchivePayload), args.Get(1).(*model.ArchiveRecord), args.Error(2)
}

func (m *MockArchiveService) Delete(ctx context.Context, archiveID uuid.UUID, actor *model.Actor) error {
	args := m.Called(ctx, archiveID, actor)
	return args.Error(0)
}

func (m *MockArchiveService) DeleteExpired(ctx context.Context, archiveID uuid.UUID, cutoff time.Time) (bool, error) {
	args := m.Called(ctx, archiveID, cutoff)
	return args.Bool(0), args.Error(1)
}

func (m *MockArchiveService) Get(ctx context.Context, archiveID uuid.UUID) (*model.ArchiveRecord, error) {
	args := m.Called(ctx, archiveID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArchiveRecord), args.Error(1)
}

func (m *MockArchiveService) ChangeRetention(ctx context.Context, archiveID uuid.UUID, actor *model.Actor, tier retention.Tier, extendDays int) (*model.ArchiveRecord, error) {
	args := m.Called(ctx, archiveID, actor, tier, extendDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ArchiveRecord), args.Error(1)
}

func (m *MockArchiveService) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ArchiveRecord, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ArchiveRecord), args.Error(1)
}

func TestArchiveHandler_CreateArchive(t *testing.T) {
	sessionID := uuid.New()

	tests := []struct {
		name           string
		body           any
		setup          func(*MockArchiveService)
		expectedStatus int
	}{
		{
			name: "archives a closed session",
			body: CreateArchiveReq{Tier: "permanent"},
			setup: func(svc *MockArchiveService) {
				svc.On("Create", mock.Anything, sessionID, mock.Anything, retention.TierPermanent).
					Return(&model.ArchiveRecord{ID: uuid.New(), SessionID: sessionID, Tier: "permanent"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "tier defaults to standard",
			body: CreateArchiveReq{},
			setup: func(svc *MockArchiveService) {
				svc.On("Create", mock.Anything, sessionID, mock.Anything, retention.TierStandard).
					Return(&model.ArchiveRecord{ID: uuid.New(), SessionID: sessionID, Tier: "standard"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "archiving an active session conflicts",
			body: CreateArchiveReq{},
			setup: func(svc *MockArchiveService) {
				svc.On("Create", mock.Anything, sessionID, mock.Anything, retention.TierStandard).
					Return(nil, service.ErrInvalidState)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "second archive attempt conflicts",
			body: CreateArchiveReq{},
			setup: func(svc *MockArchiveService) {
				svc.On("Create", mock.Anything, sessionID, mock.Anything, retention.TierStandard).
					Return(nil, service.ErrAlreadyArchived)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "storage outage maps to service unavailable",
			body: CreateArchiveReq{},
			setup: func(svc *MockArchiveService) {
				svc.On("Create", mock.Anything, sessionID, mock.Anything, retention.TierStandard).
					Return(nil, service.ErrStorageUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockArchiveService)
			tt.setup(svc)
			h := NewArchiveHandler(svc)

			r := setupRouter(testActor(model.RoleLead))
			r.POST("/sessions/:session_id/archive", h.CreateArchive)

			req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID.String()+"/archive",
				jsonBody(t, tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestArchiveHandler_RetrieveArchive_IntegrityFailure(t *testing.T) {
	archiveID := uuid.New()
	svc := new(MockArchiveService)
	svc.On("Retrieve", mock.Anything, archiveID, mock.Anything).
		Return(nil, nil, service.ErrIntegrity)
	h := NewArchiveHandler(svc)

	r := setupRouter(testActor(model.RoleLead))
	r.GET("/archives/:archive_id", h.RetrieveArchive)

	req := httptest.NewRequest(http.MethodGet, "/archives/"+archiveID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestArchiveHandler_DeleteArchive_Idempotent(t *testing.T) {
	archiveID := uuid.New()
	svc := new(MockArchiveService)
	svc.On("Delete", mock.Anything, archiveID, mock.Anything).Return(nil)
	h := NewArchiveHandler(svc)

	r := setupRouter(testActor(model.RoleLead))
	r.DELETE("/archives/:archive_id", h.DeleteArchive)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/archives/"+archiveID.String(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestArchiveHandler_ChangeRetention(t *testing.T) {
	archiveID := uuid.New()

	t.Run("changes tier", func(t *testing.T) {
		svc := new(MockArchiveService)
		svc.On("ChangeRetention", mock.Anything, archiveID, mock.Anything, retention.TierPermanent, 0).
			Return(&model.ArchiveRecord{ID: archiveID, Tier: "permanent"}, nil)
		h := NewArchiveHandler(svc)

		r := setupRouter(testActor(model.RoleLead))
		r.PUT("/archives/:archive_id/retention", h.ChangeRetention)

		req := httptest.NewRequest(http.MethodPut, "/archives/"+archiveID.String()+"/retention",
			jsonBody(t, ChangeRetentionReq{Tier: "permanent"}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("empty request rejected", func(t *testing.T) {
		h := NewArchiveHandler(new(MockArchiveService))
		r := setupRouter(testActor(model.RoleLead))
		r.PUT("/archives/:archive_id/retention", h.ChangeRetention)

		req := httptest.NewRequest(http.MethodPut, "/archives/"+archiveID.String()+"/retention",
			jsonBody(t, ChangeRetentionReq{}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
