// Package api exposes the sync engine to local front ends over HTTP: stats,
// a manual trigger, the data-changed and connectivity inputs, and a stream
// of sync-completed events.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/client/scheduler"
	"github.com/dmitrijs2005/agencysync/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// EventSyncCompleted is the server-sent event name for a completed sync.
const EventSyncCompleted = "sync_completed"

// Controller is the part of the scheduler driven by the API.
type Controller interface {
	Stats() models.SyncStats
	Cache() models.ConnectivityCache
	IsOnline() bool
	TriggerManual(ctx context.Context) scheduler.Outcome
	DataChanged()
	SetOnline(ctx context.Context, online bool)
	Subscribe() (<-chan scheduler.Event, func())
}

type statsResponse struct {
	models.SyncStats
	SkipRate   float64    `json:"skip_rate"`
	Online     bool       `json:"online"`
	HasPending bool       `json:"has_pending"`
	CheckedAt  *time.Time `json:"checked_at,omitempty"`
}

type connectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

type handler struct {
	ctrl Controller
	log  logging.Logger
}

func NewRouter(ctrl Controller, log logging.Logger) *gin.Engine {
	h := &handler{ctrl: ctrl, log: logging.OrNop(log).With("module", "api")}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/stats", h.stats)
		v1.POST("/sync", h.sync)
		v1.POST("/data-changed", h.dataChanged)
		v1.POST("/connectivity", h.connectivity)
		v1.GET("/events", h.events)
	}
	return r
}

func (h *handler) stats(c *gin.Context) {
	st := h.ctrl.Stats()
	cache := h.ctrl.Cache()
	resp := statsResponse{
		SyncStats:  st,
		SkipRate:   st.SkipRate(),
		Online:     h.ctrl.IsOnline(),
		HasPending: cache.HasPending,
	}
	if !cache.CheckedAt.IsZero() {
		at := cache.CheckedAt
		resp.CheckedAt = &at
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) sync(c *gin.Context) {
	out := h.ctrl.TriggerManual(c.Request.Context())
	c.JSON(http.StatusOK, out)
}

func (h *handler) dataChanged(c *gin.Context) {
	h.ctrl.DataChanged()
	c.Status(http.StatusNoContent)
}

func (h *handler) connectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	// The check started by a reconnect outlives this request.
	h.ctrl.SetOnline(context.WithoutCancel(c.Request.Context()), *req.Online)
	c.JSON(http.StatusOK, gin.H{"online": h.ctrl.IsOnline()})
}

func (h *handler) events(c *gin.Context) {
	ch, cancel := h.ctrl.Subscribe()
	defer cancel()

	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(EventSyncCompleted, ev)
			return true
		}
	})
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
