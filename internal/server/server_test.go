package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drivemigrate/internal/db"
	"drivemigrate/internal/logger"
	"drivemigrate/internal/model"
	"drivemigrate/internal/queue"
	"drivemigrate/internal/reporter"
	"drivemigrate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

type fakeCreds struct {
	disconnected map[string]bool
}

func (f *fakeCreds) Credential(_ context.Context, provider model.Provider, account string) (model.Credential, error) {
	if f.disconnected[account] {
		return model.Credential{}, errors.New("not connected")
	}

	return model.Credential{Provider: provider, Token: json.RawMessage(`{"access_token":"t"}`)}, nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	gdb, err := db.Open(":memory:")
	require.NoError(t, err)

	st := store.New(gdb, time.Hour)
	q := queue.New(1, 1, func(ctx context.Context, item model.WorkItem) error { return nil }, st)
	rep := reporter.New(st)
	creds := &fakeCreds{disconnected: map[string]bool{"offline@example.com": true}}

	return New(st, q, rep, creds, 0, 5*time.Millisecond), st
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func submitBody(id, source, dest string, selection string) string {
	return fmt.Sprintf(`{"id":%q,"source_account":%q,"dest_account":%q,"selection":%s}`,
		id, source, dest, selection)
}

const oneFile = `[{"external_id":"f1","name":"a.txt","kind":"file"}]`

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitRejectsSameAccounts(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transfers",
		submitBody("", "alice@example.com", "alice@example.com", oneFile))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsEmptySelection(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transfers",
		submitBody("", "alice@example.com", "bob@example.com", "[]"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsDisconnectedAccount(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transfers",
		submitBody("", "offline@example.com", "bob@example.com", oneFile))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	s, st := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transfers",
		submitBody("", "alice@example.com", "bob@example.com", oneFile))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.NotEmpty(t, job.ID)

	stored, err := st.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, stored.Status)
	assert.Equal(t, 1, stored.TotalCount)
	assert.Equal(t, "alice@example.com", stored.SourceAccount)
}

func TestSubmitDuplicateID(t *testing.T) {
	s, _ := newTestServer(t)

	first := doJSON(t, s, http.MethodPost, "/api/transfers",
		submitBody("job-1", "alice@example.com", "bob@example.com", oneFile))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := doJSON(t, s, http.MethodPost, "/api/transfers",
		submitBody("job-1", "alice@example.com", "bob@example.com", oneFile))
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestGetStatus(t *testing.T) {
	s, st := newTestServer(t)

	_, err := st.Create("job-1", "alice@example.com", "bob@example.com",
		[]model.SelectionItem{{ExternalID: "f1", Name: "a.txt", Kind: model.ItemKindFile}})
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodGet, "/api/transfers/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "job-1", job.ID)

	missing := doJSON(t, s, http.MethodGet, "/api/transfers/nope", "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestAdminList(t *testing.T) {
	s, st := newTestServer(t)

	for _, id := range []string{"job-1", "job-2"} {
		_, err := st.Create(id, "alice@example.com", "bob@example.com",
			[]model.SelectionItem{{ExternalID: "f1", Name: "a.txt", Kind: model.ItemKindFile}})
		require.NoError(t, err)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/admin/transfers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []model.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)
}

func TestEventsStreamEndsAtTerminal(t *testing.T) {
	s, st := newTestServer(t)

	_, err := st.Create("job-1", "alice@example.com", "bob@example.com",
		[]model.SelectionItem{{ExternalID: "f1", Name: "a.txt", Kind: model.ItemKindFile}})
	require.NoError(t, err)

	completed := model.JobStatusCompleted
	require.NoError(t, st.Update("job-1", store.JobUpdate{Status: &completed}))

	rec := doJSON(t, s, http.MethodGet, "/api/transfers/job-1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "data: ")
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
}

func TestEventsUnknownJob(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/transfers/nope/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
