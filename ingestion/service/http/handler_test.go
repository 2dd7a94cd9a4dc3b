package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cchain/chain"
	core "cchain/ingestion/service/core"
	"cchain/storage/store"
)

func newTestHandler(t *testing.T) (*CommitHandler, *store.MemoryStore) {
	t.Helper()
	seq := store.NewMemoryStore()
	c := chain.New(seq)
	logger := log.New(io.Discard, "", 0)
	svc := core.NewService(c, nil, logger)
	return NewCommitHandler(svc, logger), seq
}

func postCommit(t *testing.T, h *CommitHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/commits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.SubmitCommit(w, req)
	return w
}

func TestSubmitCommitHTTP(t *testing.T) {
	h, seq := newTestHandler(t)

	w := postCommit(t, h, `{"type":"manual_commit","message":"hello","user":"alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RECORDED", resp["status"])
	assert.NotEmpty(t, resp["hash"])
	assert.NotEmpty(t, resp["request_id"])

	records, err := seq.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSubmitCommitRejectsMissingType(t *testing.T) {
	h, _ := newTestHandler(t)

	w := postCommit(t, h, `{"message":"no type"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitCommitRejectsBadJSON(t *testing.T) {
	h, _ := newTestHandler(t)

	w := postCommit(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitCommitRejectsWrongMethod(t *testing.T) {
	h, _ := newTestHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/v1/commits", nil)
	w := httptest.NewRecorder()
	h.SubmitCommit(w, r)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSubmitCommitUserFromHeader(t *testing.T) {
	h, seq := newTestHandler(t)

	r := httptest.NewRequest(http.MethodPost, "/v1/commits", strings.NewReader(`{"type":"t"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Commit-User", "carol")
	w := httptest.NewRecorder()
	h.SubmitCommit(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	records, err := seq.GetAll(r.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "carol", records[0].User)
}

func TestVerifyChainHTTP(t *testing.T) {
	h, seq := newTestHandler(t)

	w := httptest.NewRecorder()
	h.VerifyChain(w, httptest.NewRequest(http.MethodGet, "/v1/commits/verify", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var result chain.VerificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, chain.ReasonEmpty, result.Reason)

	postCommit(t, h, `{"type":"t","message":"a"}`)
	postCommit(t, h, `{"type":"t","message":"b"}`)
	seq.Tamper(0, func(r *chain.CommitRecord) { r.Message = "tampered" })

	w = httptest.NewRecorder()
	h.VerifyChain(w, httptest.NewRequest(http.MethodGet, "/v1/commits/verify", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.Equal(t, chain.ReasonHashMismatch, result.Reason)
	assert.Equal(t, 0, result.Index)
}

func TestVerifyChainAllHTTP(t *testing.T) {
	h, seq := newTestHandler(t)

	postCommit(t, h, `{"type":"t","message":"a"}`)
	postCommit(t, h, `{"type":"t","message":"b"}`)
	seq.Tamper(0, func(r *chain.CommitRecord) { r.Message = "x" })
	seq.Tamper(1, func(r *chain.CommitRecord) { r.Message = "y" })

	w := httptest.NewRecorder()
	h.VerifyChain(w, httptest.NewRequest(http.MethodGet, "/v1/commits/verify?all=true", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Valid  bool          `json:"valid"`
		Breaks []chain.Break `json:"breaks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Len(t, resp.Breaks, 2)
}

func TestChainStatsHTTP(t *testing.T) {
	h, _ := newTestHandler(t)

	postCommit(t, h, `{"type":"wallet_set","message":"a","user":"alice"}`)
	postCommit(t, h, `{"type":"wallet_set","message":"b","user":"alice"}`)

	w := httptest.NewRecorder()
	h.ChainStats(w, httptest.NewRequest(http.MethodGet, "/v1/commits/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats chain.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.CountByUser["alice"])
	assert.Equal(t, 2, stats.CountByType["wallet_set"])
}

func TestHealthCheckHTTP(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
