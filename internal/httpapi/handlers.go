package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dshills/gocpd/internal/detector"
	"github.com/dshills/gocpd/internal/storage"
	"github.com/dshills/gocpd/pkg/types"
)

type handler struct {
	l        *slog.Logger
	store    storage.Storage
	detector *detector.Detector
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) SetErr(err error) {
	w.err = err
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

type errorSetter interface {
	SetErr(error)
}

func markErr(w http.ResponseWriter, err error) {
	if es, ok := w.(errorSetter); ok {
		es.SetErr(err)
	}
}

// Log records one line per request
func (h *handler) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rw := &rwLogger{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		if rw.status == 0 {
			rw.status = http.StatusOK
		}

		attrs := []any{
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"dur_ms", time.Since(startTime).Milliseconds(),
			"bytes", rw.bytes,
		}
		if rw.err != nil {
			h.l.Error(rw.err.Error(), attrs...)
			return
		}
		h.l.Debug("http request", attrs...)
	})
}

type partJSON struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

type groupJSON struct {
	Hash        string     `json:"hash"`
	Lines       int        `json:"lines"`
	Blocks      int        `json:"blocks"`
	Occurrences []partJSON `json:"occurrences"`
}

type duplicatesJSON struct {
	ProjectID       int64       `json:"project_id"`
	TotalGroups     int         `json:"total_groups"`
	DuplicatedLines int         `json:"duplicated_lines"`
	Groups          []groupJSON `json:"groups"`
}

type statusJSON struct {
	ProjectID       int64     `json:"project_id"`
	RootPath        string    `json:"root_path"`
	ModuleName      string    `json:"module_name,omitempty"`
	BlockSize       int       `json:"block_size"`
	Files           int       `json:"files"`
	FailedFiles     int       `json:"failed_files"`
	Blocks          int       `json:"blocks"`
	DuplicateHashes int       `json:"duplicate_hashes"`
	SchemaVersion   string    `json:"schema_version"`
	LastIndexedAt   time.Time `json:"last_indexed_at"`
}

type blockJSON struct {
	File        string `json:"file"`
	IndexInFile int    `json:"index_in_file"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
}

// GetStatus returns the index statistics of one project
func (h *handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	status, err := h.store.GetStatus(r.Context(), id)
	if err != nil {
		h.storageError(w, err)
		return
	}

	writeJSON(w, statusJSON{
		ProjectID:       id,
		RootPath:        status.Project.RootPath,
		ModuleName:      status.Project.ModuleName,
		BlockSize:       status.Project.BlockSize,
		Files:           status.FilesCount,
		FailedFiles:     status.FailedFiles,
		Blocks:          status.BlocksCount,
		DuplicateHashes: status.DuplicateHashes,
		SchemaVersion:   status.Health.SchemaVersion,
		LastIndexedAt:   status.LastIndexedAt,
	})
}

// GetDuplicates returns the clone groups of one project.
// Query parameters: min_lines, limit.
func (h *handler) GetDuplicates(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	var opts detector.Options
	for name, dst := range map[string]*int{"min_lines": &opts.MinLines, "limit": &opts.Limit} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			markErr(w, errors.New("invalid "+name))
			http.Error(w, "invalid "+name, http.StatusBadRequest)
			return
		}
		*dst = v
	}

	report, err := h.detector.FindClones(r.Context(), id, opts)
	if err != nil {
		h.storageError(w, err)
		return
	}

	out := duplicatesJSON{
		ProjectID:       id,
		TotalGroups:     report.TotalGroups,
		DuplicatedLines: report.DuplicatedLines,
		Groups:          make([]groupJSON, 0, len(report.Groups)),
	}
	for _, g := range report.Groups {
		gj := groupJSON{Hash: g.Hash.String(), Lines: g.Lines(), Blocks: g.Blocks}
		for _, p := range g.Parts {
			gj.Occurrences = append(gj.Occurrences, partJSON{File: p.ResourceID, StartLine: p.StartLine, EndLine: p.EndLine})
		}
		out.Groups = append(out.Groups, gj)
	}
	writeJSON(w, out)
}

// GetBlocks returns every location of one block hash in a project
func (h *handler) GetBlocks(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	hash, err := types.ParseHash(mux.Vars(r)["hash"])
	if err != nil {
		markErr(w, err)
		http.Error(w, "invalid hash", http.StatusBadRequest)
		return
	}

	if _, err := h.store.GetProjectByID(r.Context(), id); err != nil {
		h.storageError(w, err)
		return
	}

	blocks, err := h.store.ListBlocksByHash(r.Context(), id, hash)
	if err != nil {
		h.storageError(w, err)
		return
	}

	out := make([]blockJSON, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockJSON{File: b.FilePath, IndexInFile: b.IndexInFile, StartLine: b.StartLine, EndLine: b.EndLine})
	}
	writeJSON(w, out)
}

// Healthz reports that the server is up
func (h *handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		markErr(w, err)
		http.Error(w, "Unable to convert ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *handler) storageError(w http.ResponseWriter, err error) {
	markErr(w, err)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		markErr(w, err)
	}
}
