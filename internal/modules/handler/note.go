package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/havenline/casekeeper/internal/modules/serializer"
	"github.com/havenline/casekeeper/internal/modules/service"
)

type NoteHandler struct {
	svc service.NoteService
}

func NewNoteHandler(s service.NoteService) *NoteHandler {
	return &NoteHandler{svc: s}
}

type CreateNoteReq struct {
	Content string `json:"content" binding:"required" example:"initial contact established"`
}

func (h *NoteHandler) CreateNote(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session_id", err))
		return
	}
	req := CreateNoteReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	note, err := h.svc.Create(c.Request.Context(), sessionID, actor, req.Content)
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Data: note})
}

func (h *NoteHandler) GetNotes(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session_id", err))
		return
	}

	notes, err := h.svc.List(c.Request.Context(), sessionID)
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: notes})
}

type UpdateNoteReq struct {
	Content string `json:"content" binding:"required"`
	Version int    `json:"version" binding:"required,min=1" example:"3"`
}

// UpdateNote rewrites note content under optimistic concurrency. A 409
// response carries the current note so the client can merge and retry.
func (h *NoteHandler) UpdateNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("note_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid note_id", err))
		return
	}
	req := UpdateNoteReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	note, err := h.svc.Update(c.Request.Context(), noteID, actor, req.Version, req.Content)
	if err != nil {
		// note holds the current row on a version conflict
		svcErr(c, err, note)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: note})
}

func (h *NoteHandler) LockNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("note_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid note_id", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	note, err := h.svc.Lock(c.Request.Context(), noteID, actor)
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: note})
}

func (h *NoteHandler) UnlockNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("note_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid note_id", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	note, err := h.svc.Unlock(c.Request.Context(), noteID, actor)
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: note})
}

func (h *NoteHandler) DeleteNote(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("note_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid note_id", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), noteID, actor); err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "deleted"})
}
