package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"drivemigrate/internal/logger"
	"drivemigrate/internal/model"
	"drivemigrate/internal/queue"
	"drivemigrate/internal/reporter"
	"drivemigrate/internal/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// CredentialSource supplies per-account credential snapshots at submission
// time. Tokens are copied into the work item; the queue never re-fetches.
type CredentialSource interface {
	Credential(ctx context.Context, provider model.Provider, account string) (model.Credential, error)
}

// Server is the submission and status HTTP surface over the core components.
type Server struct {
	echo         *echo.Echo
	store        *store.Store
	queue        *queue.Queue
	reporter     *reporter.Reporter
	creds        CredentialSource
	port         int
	pollInterval time.Duration
}

func New(st *store.Store, q *queue.Queue, rep *reporter.Reporter, creds CredentialSource, port int, pollInterval time.Duration) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:         e,
		store:        st,
		queue:        q,
		reporter:     rep,
		creds:        creds,
		port:         port,
		pollInterval: pollInterval,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)

	g := s.echo.Group("/api/transfers")
	g.POST("", s.handleSubmit)
	g.GET("/:id", s.handleGet)
	g.GET("/:id/events", s.handleEvents)

	s.echo.GET("/api/admin/transfers", s.handleAdminList)
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("api server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("api server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	ID             string                `json:"id"`
	SourceAccount  string                `json:"source_account"`
	DestAccount    string                `json:"dest_account"`
	SourceProvider model.Provider        `json:"source_provider"`
	DestProvider   model.Provider        `json:"dest_provider"`
	Selection      []model.SelectionItem `json:"selection"`
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.SourceProvider == "" {
		req.SourceProvider = model.ProviderGDrive
	}
	if req.DestProvider == "" {
		req.DestProvider = model.ProviderGDrive
	}

	if req.SourceAccount == "" || req.DestAccount == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "both accounts are required"})
	}
	if req.SourceAccount == req.DestAccount {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "source and destination accounts must differ"})
	}
	if len(req.Selection) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "selection must not be empty"})
	}

	ctx := c.Request().Context()

	srcCred, err := s.creds.Credential(ctx, req.SourceProvider, req.SourceAccount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "source account is not connected"})
	}
	dstCred, err := s.creds.Credential(ctx, req.DestProvider, req.DestAccount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "destination account is not connected"})
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	job, err := s.store.Create(id, req.SourceAccount, req.DestAccount, req.Selection)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "job id already exists"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	err = s.queue.Enqueue(model.WorkItem{
		JobID:            job.ID,
		SourceCredential: srcCred,
		DestCredential:   dstCred,
		Selection:        req.Selection,
	})
	switch {
	case errors.Is(err, queue.ErrAlreadyQueued):
		return c.JSON(http.StatusConflict, map[string]string{"error": "job already queued"})
	case errors.Is(err, queue.ErrQueueFull):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "queue full, try again later"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	logger.Log.Info("job submitted",
		zap.String("job", job.ID),
		zap.String("source", req.SourceAccount),
		zap.String("dest", req.DestAccount),
		zap.Int("roots", len(req.Selection)))

	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleGet(c echo.Context) error {
	job, err := s.reporter.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleAdminList(c echo.Context) error {
	jobs, err := s.store.List()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{"jobs": jobs})
}
