package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/middleware"
	"github.com/havenline/casekeeper/internal/modules/handler"
	"github.com/havenline/casekeeper/internal/modules/repo"
	"github.com/havenline/casekeeper/internal/modules/serializer"
)

type RouterDeps struct {
	Config         *config.Config
	Actors         repo.ActorRepo
	Log            *zap.Logger
	SessionHandler *handler.SessionHandler
	NoteHandler    *handler.NoteHandler
	ArchiveHandler *handler.ArchiveHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	v1 := r.Group("/api/v1")
	{
		v1.Use(middleware.ActorAuth(d.Config, d.Actors))

		session := v1.Group("/sessions")
		{
			session.POST("", d.SessionHandler.IngestEvent)
			session.GET("", d.SessionHandler.GetSessions)
			session.GET("/:session_id", d.SessionHandler.GetSession)

			session.POST("/:session_id/close", d.SessionHandler.CloseSession)
			session.POST("/:session_id/reopen", d.SessionHandler.ReopenSession)
			session.POST("/:session_id/assign", d.SessionHandler.AssignSession)
			session.POST("/:session_id/unassign", d.SessionHandler.UnassignSession)

			session.POST("/:session_id/notes", d.NoteHandler.CreateNote)
			session.GET("/:session_id/notes", d.NoteHandler.GetNotes)

			session.POST("/:session_id/archive", d.ArchiveHandler.CreateArchive)
		}

		note := v1.Group("/notes")
		{
			note.PUT("/:note_id", d.NoteHandler.UpdateNote)
			note.POST("/:note_id/lock", d.NoteHandler.LockNote)
			note.POST("/:note_id/unlock", d.NoteHandler.UnlockNote)
			note.DELETE("/:note_id", d.NoteHandler.DeleteNote)
		}

		archive := v1.Group("/archives")
		{
			archive.GET("/:archive_id", d.ArchiveHandler.RetrieveArchive)
			archive.GET("/:archive_id/meta", d.ArchiveHandler.GetArchive)
			archive.DELETE("/:archive_id", d.ArchiveHandler.DeleteArchive)
			archive.PUT("/:archive_id/retention", d.ArchiveHandler.ChangeRetention)
		}
	}
	return r
}
