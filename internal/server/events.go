package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"drivemigrate/internal/store"

	"github.com/labstack/echo/v4"
)

// handleEvents streams job snapshots as server-sent events until the job
// reaches a terminal status. Plain polling of GET /api/transfers/:id observes
// the exact same record; this is just the push transport of the same data.
func (s *Server) handleEvents(c echo.Context) error {
	id := c.Param("id")

	if _, err := s.reporter.Get(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	ctx := c.Request().Context()
	for job := range s.reporter.Watch(ctx, id, s.pollInterval) {
		b, err := json.Marshal(job)
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(res, "data: %s\n\n", b); err != nil {
			return nil // client went away
		}
		flusher.Flush()
	}

	return nil
}
