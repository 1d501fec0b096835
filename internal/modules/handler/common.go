package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/modules/serializer"
	"github.com/havenline/casekeeper/internal/modules/service"
	"github.com/havenline/casekeeper/internal/pkg/retention"
)

// currentActor pulls the authenticated actor placed by middleware.ActorAuth.
func currentActor(c *gin.Context) (*model.Actor, bool) {
	actor, ok := c.MustGet("actor").(*model.Actor)
	return actor, ok
}

// svcErr maps service-layer errors onto HTTP responses. conflictData is
// attached to 409 responses so clients can see the current state they lost to.
func svcErr(c *gin.Context, err error, conflictData interface{}) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, serializer.Err(http.StatusNotFound, "not found", err))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, serializer.Err(http.StatusForbidden, "forbidden", err))
	case errors.Is(err, service.ErrVersionConflict):
		res := serializer.Err(http.StatusConflict, "version conflict", err)
		res.Data = conflictData
		c.JSON(http.StatusConflict, res)
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrAlreadyArchived):
		res := serializer.Err(http.StatusConflict, err.Error(), err)
		res.Data = conflictData
		c.JSON(http.StatusConflict, res)
	case errors.Is(err, service.ErrSessionLocked),
		errors.Is(err, service.ErrNoteLocked),
		errors.Is(err, service.ErrSessionArchived):
		c.JSON(http.StatusLocked, serializer.Err(http.StatusLocked, err.Error(), err))
	case errors.Is(err, service.ErrInvalidCursor):
		c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), err))
	case errors.Is(err, retention.ErrUnknownTier):
		c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), err))
	case errors.Is(err, service.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, serializer.Err(http.StatusServiceUnavailable, "archive storage unavailable", err))
	case errors.Is(err, service.ErrIntegrity):
		c.JSON(http.StatusInternalServerError, serializer.Err(http.StatusInternalServerError, "archive integrity failure", err))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}
