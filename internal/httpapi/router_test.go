package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocpd/internal/detector"
	"github.com/dshills/gocpd/internal/storage"
	"github.com/dshills/gocpd/pkg/types"
)

type fixture struct {
	router  http.Handler
	project *storage.Project
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	project := &storage.Project{RootPath: "/repo", BlockSize: 2, IndexVersion: storage.CurrentSchemaVersion}
	require.NoError(t, store.CreateProject(ctx, project))
	project.LastIndexedAt = time.Now()
	require.NoError(t, store.UpdateProject(ctx, project))

	for _, path := range []string{"a.go", "b.go"} {
		file := &storage.File{ProjectID: project.ID, FilePath: path, ContentHash: sha256.Sum256([]byte(path))}
		require.NoError(t, store.UpsertFile(ctx, file))
		require.NoError(t, store.InsertBlocks(ctx, file.ID, []types.Block{
			types.NewBlock(path, types.HashFromInt64(11), 0, 1, 4),
			types.NewBlock(path, types.HashFromInt64(12), 1, 3, 6),
		}))
	}

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gocpd_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		router:  New(logger, store, detector.New(store), reg),
		project: project,
	}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) projectPath(suffix string) string {
	return "/v1/projects/" + strconv.FormatInt(f.project.ID, 10) + suffix
}

func TestHealthz(t *testing.T) {
	f := setup(t)
	rec := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	f := setup(t)
	rec := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gocpd_test_total 1")
}

func TestGetStatus(t *testing.T) {
	f := setup(t)
	rec := f.get(t, f.projectPath(""))
	require.Equal(t, http.StatusOK, rec.Code)

	var out statusJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "/repo", out.RootPath)
	assert.Equal(t, 2, out.Files)
	assert.Equal(t, 4, out.Blocks)
	assert.Equal(t, 2, out.DuplicateHashes)
	assert.Equal(t, storage.CurrentSchemaVersion, out.SchemaVersion)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/v1/projects/999").Code)
}

func TestGetDuplicates(t *testing.T) {
	f := setup(t)
	rec := f.get(t, f.projectPath("/duplicates"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out duplicatesJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.TotalGroups)
	require.Len(t, out.Groups, 1)
	assert.Equal(t, 2, out.Groups[0].Blocks)
	assert.Equal(t, 6, out.Groups[0].Lines)
	assert.Equal(t, []partJSON{
		{File: "a.go", StartLine: 1, EndLine: 6},
		{File: "b.go", StartLine: 1, EndLine: 6},
	}, out.Groups[0].Occurrences)

	rec = f.get(t, f.projectPath("/duplicates?min_lines=7"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Zero(t, out.TotalGroups)

	assert.Equal(t, http.StatusBadRequest, f.get(t, f.projectPath("/duplicates?limit=x")).Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/v1/projects/999/duplicates").Code)
}

func TestGetBlocks(t *testing.T) {
	f := setup(t)
	hash := types.HashFromInt64(12).String()

	rec := f.get(t, f.projectPath("/blocks/"+hash))
	require.Equal(t, http.StatusOK, rec.Code)

	var out []blockJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "a.go", out[0].File)
	assert.Equal(t, 1, out[0].IndexInFile)

	rec = f.get(t, f.projectPath("/blocks/"+strings.Repeat("0", 16)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = f.get(t, "/v1/projects/999/blocks/"+hash)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Route only matches 16 hex digits
	assert.Equal(t, http.StatusNotFound, f.get(t, f.projectPath("/blocks/xyz")).Code)
}
