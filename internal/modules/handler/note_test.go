package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/modules/serializer"
	"github.com/havenline/casekeeper/internal/modules/service"
)

// MockNoteService is a mock implementation of service.NoteService
type MockNoteService struct {
	mock.Mock
}

func (m *MockNoteService) Create(ctx context.Context, sessionID uuid.UUID, actor *model.Actor, content string) (*model.Note, error) {
	args := m.Called(ctx, sessionID, actor, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockNoteService) Get(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockNoteService) List(ctx context.Context, sessionID uuid.UUID) ([]model.Note, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Note), args.Error(1)
}

func (m *MockNoteService) Update(ctx context.Context, id uuid.UUID, actor *model.Actor, expectedVersion int, content string) (*model.Note, error) {
	args := m.Called(ctx, id, actor, expectedVersion, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockNoteService) Lock(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Note, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockNoteService) Unlock(ctx context.Context, id uuid.UUID, actor *model.Actor) (*model.Note, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Note), args.Error(1)
}

func (m *MockNoteService) Delete(ctx context.Context, id uuid.UUID, actor *model.Actor) error {
	args := m.Called(ctx, id, actor)
	return args.Error(0)
}

func TestNoteHandler_CreateNote(t *testing.T) {
	sessionID := uuid.New()

	tests := []struct {
		name           string
		setup          func(*MockNoteService)
		expectedStatus int
	}{
		{
			name: "note created on active session",
			setup: func(svc *MockNoteService) {
				svc.On("Create", mock.Anything, sessionID, mock.Anything, "first contact").
					Return(&model.Note{ID: uuid.New(), SessionID: sessionID, Version: 1}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "closed session rejects notes",
			setup: func(svc *MockNoteService) {
				svc.On("Create", mock.Anything, sessionID, mock.Anything, "first contact").
					Return(nil, service.ErrSessionLocked)
			},
			expectedStatus: http.StatusLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockNoteService)
			tt.setup(svc)
			h := NewNoteHandler(svc)

			r := setupRouter(testActor(model.RoleMember))
			r.POST("/sessions/:session_id/notes", h.CreateNote)

			req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID.String()+"/notes",
				jsonBody(t, CreateNoteReq{Content: "first contact"}))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestNoteHandler_UpdateNote_ConflictCarriesCurrentNote(t *testing.T) {
	noteID := uuid.New()
	current := &model.Note{ID: noteID, Version: 5, Content: "their edit"}

	svc := new(MockNoteService)
	svc.On("Update", mock.Anything, noteID, mock.Anything, 3, "my edit").
		Return(current, service.ErrVersionConflict)
	h := NewNoteHandler(svc)

	r := setupRouter(testActor(model.RoleMember))
	r.PUT("/notes/:note_id", h.UpdateNote)

	req := httptest.NewRequest(http.MethodPut, "/notes/"+noteID.String(),
		jsonBody(t, UpdateNoteReq{Content: "my edit", Version: 3}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var res serializer.Response
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &res))
	data, ok := res.Data.(map[string]interface{})
	require.True(t, ok, "conflict response must carry the current note")
	assert.EqualValues(t, 5, data["version"])
}

func TestNoteHandler_UpdateNote_RequiresVersion(t *testing.T) {
	noteID := uuid.New()
	h := NewNoteHandler(new(MockNoteService))

	r := setupRouter(testActor(model.RoleMember))
	r.PUT("/notes/:note_id", h.UpdateNote)

	req := httptest.NewRequest(http.MethodPut, "/notes/"+noteID.String(),
		jsonBody(t, map[string]any{"content": "edit with no version"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoteHandler_DeleteNote(t *testing.T) {
	noteID := uuid.New()

	tests := []struct {
		name           string
		setup          func(*MockNoteService)
		expectedStatus int
	}{
		{
			name: "privileged delete succeeds",
			setup: func(svc *MockNoteService) {
				svc.On("Delete", mock.Anything, noteID, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "member delete forbidden",
			setup: func(svc *MockNoteService) {
				svc.On("Delete", mock.Anything, noteID, mock.Anything).Return(service.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "archived session refuses deletion",
			setup: func(svc *MockNoteService) {
				svc.On("Delete", mock.Anything, noteID, mock.Anything).Return(service.ErrSessionArchived)
			},
			expectedStatus: http.StatusLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockNoteService)
			tt.setup(svc)
			h := NewNoteHandler(svc)

			r := setupRouter(testActor(model.RoleLead))
			r.DELETE("/notes/:note_id", h.DeleteNote)

			req := httptest.NewRequest(http.MethodDelete, "/notes/"+noteID.String(), nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}
