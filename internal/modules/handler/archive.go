package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/havenline/casekeeper/internal/modules/serializer"
	"github.com/havenline/casekeeper/internal/modules/service"
	"github.com/havenline/casekeeper/internal/pkg/retention"
)

type ArchiveHandler struct {
	svc service.ArchiveService
}

func NewArchiveHandler(s service.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{svc: s}
}

type CreateArchiveReq struct {
	Tier string `json:"tier" binding:"omitempty,oneof=standard permanent" example:"standard"`
}

// CreateArchive snapshots a closed session into encrypted cold storage and
// flips it to archived.
func (h *ArchiveHandler) CreateArchive(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session_id", err))
		return
	}
	req := CreateArchiveReq{}
	// body is optional, tier defaults to standard
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	if req.Tier == "" {
		req.Tier = string(retention.TierStandard)
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), sessionID, actor, retention.Tier(req.Tier))
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, serializer.Response{Data: rec})
}

func (h *ArchiveHandler) GetArchive(c *gin.Context) {
	archiveID, err := uuid.Parse(c.Param("archive_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid archive_id", err))
		return
	}

	rec, err := h.svc.Get(c.Request.Context(), archiveID)
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: rec})
}

// RetrieveArchive decrypts and returns the full archived snapshot.
func (h *ArchiveHandler) RetrieveArchive(c *gin.Context) {
	archiveID, err := uuid.Parse(c.Param("archive_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid archive_id", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	payload, rec, err := h.svc.Retrieve(c.Request.Context(), archiveID, actor)
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: gin.H{
		"archive": rec,
		"payload": payload,
	}})
}

func (h *ArchiveHandler) DeleteArchive(c *gin.Context) {
	archiveID, err := uuid.Parse(c.Param("archive_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid archive_id", err))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), archiveID, actor); err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "deleted"})
}

type ChangeRetentionReq struct {
	Tier       string `json:"tier" binding:"omitempty,oneof=standard permanent" example:"permanent"`
	ExtendDays int    `json:"extend_days" binding:"omitempty,min=1" example:"90"`
}

func (h *ArchiveHandler) ChangeRetention(c *gin.Context) {
	archiveID, err := uuid.Parse(c.Param("archive_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid archive_id", err))
		return
	}
	req := ChangeRetentionReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	if req.Tier == "" && req.ExtendDays == 0 {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("tier or extend_days is required", nil))
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", errors.New("actor not found")))
		return
	}

	rec, err := h.svc.ChangeRetention(c.Request.Context(), archiveID, actor, retention.Tier(req.Tier), req.ExtendDays)
	if err != nil {
		svcErr(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: rec})
}
