package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/deciduous/pkg/document"
	"github.com/matzehuels/deciduous/pkg/errors"
	"github.com/matzehuels/deciduous/pkg/pipeline"
	"github.com/matzehuels/deciduous/pkg/provenance"
)

// codeTooLarge is reported when a body exceeds the configured limit. It is
// a transport concern, so it has no counterpart in pkg/errors.
const codeTooLarge = "BODY_TOO_LARGE"

var errNothingRendered = errors.New(errors.ErrCodeNoSource, "nothing has been rendered yet")

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

type compileResponse struct {
	DOT        string              `json:"dot"`
	Categories []document.Category `json:"categories"`
	Title      string              `json:"title"`
	Nodes      int                 `json:"nodes"`
	Edges      int                 `json:"edges"`
}

type snapshotResponse struct {
	ID         string              `json:"id"`
	Seq        uint64              `json:"seq"`
	Created    time.Time           `json:"created"`
	OK         bool                `json:"ok"`
	Title      string              `json:"title,omitempty"`
	Categories []document.Category `json:"categories,omitempty"`
	Formats    []string            `json:"formats,omitempty"`
	Error      *errorBody          `json:"error,omitempty"`
}

var contentTypes = map[string]string{
	errors.FormatDOT: "text/vnd.graphviz; charset=utf-8",
	errors.FormatSVG: "image/svg+xml",
	errors.FormatPNG: "image/png",
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	src, ok := s.readBody(w, r)
	if !ok {
		return
	}
	c, err := pipeline.Compile(src, compileOptions(r))
	if err != nil {
		s.metrics.RecordCompile(string(errors.GetCode(err)), 0)
		s.writeError(w, err)
		return
	}
	s.metrics.RecordCompile(resultOK, c.Graph.NodeCount())

	categories := c.Categories
	if categories == nil {
		categories = []document.Category{}
	}
	writeJSON(w, http.StatusOK, compileResponse{
		DOT:        c.DOT,
		Categories: categories,
		Title:      c.Title,
		Nodes:      c.Graph.NodeCount(),
		Edges:      c.Graph.EdgeCount(),
	})
}

// handleRender runs the full pipeline for one format and publishes the
// outcome as the latest snapshot. A document whose filtered graph is empty
// yields 204 for layout formats: there is nothing to draw.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	src, ok := s.readBody(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = errors.FormatSVG
	}
	if err := errors.ValidateFormat(format); err != nil {
		s.writeError(w, err)
		return
	}

	snap := s.runner.Run(r.Context(), src, pipeline.Options{
		CompileOptions: compileOptions(r),
		Formats:        []string{format},
		Embed:          q.Get("embed") != "false",
		Refresh:        boolParam(q.Get("refresh")),
		Logger:         s.logger,
	})
	if s.current.Publish(snap) {
		s.metrics.SnapshotSeq.Set(float64(snap.Seq))
	}

	if snap.Err != nil {
		s.metrics.RecordCompile(string(errors.GetCode(snap.Err)), 0)
		s.writeError(w, snap.Err)
		return
	}
	s.metrics.RecordCompile(resultOK, snap.Compiled.Graph.NodeCount())

	if format != errors.FormatDOT && !snap.Compiled.Worth() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeArtifact(w, snap, format)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	artifact, ok := s.readBody(w, r)
	if !ok {
		return
	}
	source, format, err := provenance.Extract(artifact)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("X-Deciduous-Format", format)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, source)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap := s.current.Load()
	if snap == nil {
		writeJSON(w, http.StatusNotFound, errorFor(errNothingRendered))
		return
	}
	resp := snapshotResponse{
		ID:      snap.ID.String(),
		Seq:     snap.Seq,
		Created: snap.Created,
		OK:      snap.OK(),
	}
	if snap.OK() {
		resp.Title = snap.Compiled.Title
		resp.Categories = snap.Compiled.Categories
		for _, f := range []string{errors.FormatDOT, errors.FormatSVG, errors.FormatPNG} {
			if _, ok := snap.Artifacts[f]; ok {
				resp.Formats = append(resp.Formats, f)
			}
		}
	} else {
		body := errorFor(snap.Err)
		resp.Error = &body
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatestArtifact(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if err := errors.ValidateFormat(format); err != nil {
		s.writeError(w, err)
		return
	}
	snap := s.current.Load()
	if snap == nil {
		writeJSON(w, http.StatusNotFound, errorFor(errNothingRendered))
		return
	}
	if !snap.OK() {
		s.writeError(w, snap.Err)
		return
	}
	s.writeArtifact(w, snap, format)
}

func (s *Server) writeArtifact(w http.ResponseWriter, snap *pipeline.Snapshot, format string) {
	data, err := snap.Artifact(format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Deciduous-Snapshot", snap.ID.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// readBody reads the whole request body, answering 413 or 400 itself when
// that fails.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Code:    codeTooLarge,
				Message: "request body too large",
			})
			return nil, false
		}
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body"))
		return nil, false
	}
	return data, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	} else {
		s.logger.Debug("request rejected", "err", err)
	}
	writeJSON(w, status, errorFor(err))
}

func errorFor(err error) errorBody {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return errorBody{
		Code:    string(code),
		NodeID:  errors.NodeID(err),
		Message: errors.UserMessage(err),
	}
}

// statusFor maps an error code to an HTTP status. Anything that rejects the
// document itself is 422.
func statusFor(err error) int {
	if errors.IsValidation(err) {
		return http.StatusUnprocessableEntity
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeDecode, errors.ErrCodeNoSource:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func compileOptions(r *http.Request) pipeline.CompileOptions {
	q := r.URL.Query()
	return pipeline.CompileOptions{
		Focus:    q["focus"],
		NoFilter: boolParam(q.Get("no_filter")),
	}
}

func boolParam(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
