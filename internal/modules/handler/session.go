package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/havenline/casekeeper/internal/modules/serializer"
	"github.com/havenline/casekeeper/internal/modules/service"
)

type SessionHandler struct {
	svc service.SessionService
}

func NewSessionHandler(s service.SessionService) *SessionHandler {
	return &SessionHandler{svc: s}
}

type IngestEventReq struct {
	SubjectID string         `json:"subject_id" binding:"required" example:"subject-7f3a"`
	Severity  string         `json:"severity" binding:"required,oneof=critical high medium low safe" example:"high"`
	Payload   map[string]any `json:"payload"`
	Source    string         `json:"source" example:"screening-pipeline"`
}

// IngestEvent accepts one screening event. An active session for the subject
// absorbs the event; otherwise a new session starts.
func (h *SessionHandler) IngestEvent(c *gin.Context) {
	req := IngestEventReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	session, created, err := h.svc.Ingest(c.Request.Context(), service.IngestInput{
		SubjectID: req.SubjectID,
		Severity:  req.Severity,
		Payload:   req.Payload,
		Source:    req.Source,
	})
	if err != nil {
		svcErr(c, err, nil)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, serializer.Response{Data: session})
}

type GetSessionsReq struct {
	Status   string `form:"status" binding:"omitempty,oneof=active closed archived" example:"active"`
	Limit    int    `form:"limit,default=20" binding:"required,min=1,max=200" example:"20"`
	Cursor   string `form:"cursor"`
	TimeDesc bool   `form:"time_desc,default=false" example:"false"`
}

func (h *SessionHandler) GetSessions(c *gin.Context) {
	req := GetSessionsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	out, err := h.svc.List(c.Request.Context(), service.ListSessionsInput{
		Status:   req.Status,
		Limit:    req.Limit,
		Cursor:   req.Cursor,
		TimeDesc: req.TimeDesc,
	})
	if err != nil {
		svcErr(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session_id", err))
		return
	}

	session, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: session})
}

type CloseSessionReq struct {
	Summary string `json:"summary" example:"subject connected with local support"`
}

func (h *SessionHandler) CloseSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session_id", err))
		return
	}
	req := CloseSessionReq{}
	// body is optional, a close without summary is fine
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	session, err := h.svc.Close(c.Request.Context(), sessionID, actor, req.Summary)
	if err != nil {
		// session holds the current row when the transition conflicts
		svcErr(c, err, session)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: session})
}

func (h *SessionHandler) ReopenSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session_id", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	session, err := h.svc.Reopen(c.Request.Context(), sessionID, actor)
	if err != nil {
		// session holds the current row when the transition conflicts
		svcErr(c, err, session)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: session})
}

type AssignSessionReq struct {
	Assignee string `json:"assignee" binding:"required" example:"resp-042"`
}

func (h *SessionHandler) AssignSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session_id", err))
		return
	}
	req := AssignSessionReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	session, err := h.svc.Assign(c.Request.Context(), sessionID, actor, req.Assignee)
	if err != nil {
		// session holds the current row when the transition conflicts
		svcErr(c, err, session)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: session})
}

func (h *SessionHandler) UnassignSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session_id", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	session, err := h.svc.Unassign(c.Request.Context(), sessionID, actor)
	if err != nil {
		// session holds the current row when the transition conflicts
		svcErr(c, err, session)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: session})
}
