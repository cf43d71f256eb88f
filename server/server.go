// Package server exposes the merge pipeline over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	pdflib "github.com/digitorus/pdf"
	"github.com/sirupsen/logrus"

	"github.com/firmadoc/pdfmerge/geom"
	"github.com/firmadoc/pdfmerge/merge"
	"github.com/firmadoc/pdfmerge/placement"
)

type errorResponse struct {
	Error string `json:"error"`
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// Handler serves the merge endpoints. Use New to construct one.
type Handler struct {
	Logger    logrus.FieldLogger
	Merger    *merge.Merger
	MaxUpload int64

	mux *http.ServeMux
}

// New returns a Handler with routes registered.
func New(logger logrus.FieldLogger, merger *merge.Merger, maxUpload int64) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if merger == nil {
		merger = merge.New()
		merger.Logger = logger
	}
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}

	h := &Handler{
		Logger:    logger,
		Merger:    merger,
		MaxUpload: maxUpload,
		mux:       http.NewServeMux(),
	}

	h.mux.HandleFunc("/merge", h.handleMerge)
	h.mux.HandleFunc("/print", h.handlePrint)
	h.mux.HandleFunc("/migrate", h.handleMigrate)
	h.mux.HandleFunc("/geometry", h.handleGeometry)
	h.mux.HandleFunc("/healthz", h.handleHealth)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// readUpload pulls the document bytes and placement JSON out of a
// multipart request.
func (h *Handler) readUpload(r *http.Request) (document []byte, placements []placement.Placement, err error) {
	if err := r.ParseMultipartForm(h.MaxUpload); err != nil {
		return nil, nil, fmt.Errorf("invalid multipart form data")
	}

	file, _, err := r.FormFile("document")
	if err != nil {
		return nil, nil, fmt.Errorf("missing or invalid 'document'")
	}
	defer file.Close()

	document, err = io.ReadAll(io.LimitReader(file, h.MaxUpload+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read 'document'")
	}
	if int64(len(document)) > h.MaxUpload {
		return nil, nil, fmt.Errorf("'document' exceeds upload limit")
	}

	raw := r.FormValue("placements")
	if raw == "" {
		return nil, nil, fmt.Errorf("missing 'placements' field")
	}
	placements, err = placement.DecodeRecords([]byte(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid 'placements': %v", err)
	}
	return document, placements, nil
}

func (h *Handler) merge(w http.ResponseWriter, r *http.Request, disposition string) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	document, placements, err := h.readUpload(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	merged, result, err := h.Merger.MergeBytes(document, placements)
	if err != nil {
		h.Logger.WithError(err).Warn("merge failed")
		jsonError(w, "failed to process document", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Applied", strconv.Itoa(result.Applied))
	w.Header().Set("X-Skipped", strconv.Itoa(result.Skipped))
	w.Write(merged)
}

// handleMerge returns the merged document as an attachment download.
func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	h.merge(w, r, `attachment; filename="merged.pdf"`)
}

// handlePrint returns the merged document inline for browser printing.
func (h *Handler) handlePrint(w http.ResponseWriter, r *http.Request) {
	h.merge(w, r, `inline; filename="merged.pdf"`)
}

// handleMigrate converts legacy placement JSON into the canonical form
// without touching any document.
func (h *Handler) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, h.MaxUpload+1))
	if err != nil || len(raw) == 0 {
		jsonError(w, "missing request body", http.StatusBadRequest)
		return
	}

	placements, err := placement.DecodeRecords(raw)
	if err != nil {
		jsonError(w, "invalid placement data: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(placements)
}

type pageGeometry struct {
	Page        int     `json:"page"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Rotation    int     `json:"rotation"`
	Orientation string  `json:"orientation"`
}

// handleGeometry reports the native dimensions of every page in the
// uploaded document.
func (h *Handler) handleGeometry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(h.MaxUpload); err != nil {
		jsonError(w, "invalid multipart form data", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("document")
	if err != nil {
		jsonError(w, "missing or invalid 'document'", http.StatusBadRequest)
		return
	}
	defer file.Close()

	document, err := io.ReadAll(io.LimitReader(file, h.MaxUpload+1))
	if err != nil {
		jsonError(w, "failed to read 'document'", http.StatusBadRequest)
		return
	}

	reader, err := pdflib.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		jsonError(w, "failed to parse document", http.StatusUnprocessableEntity)
		return
	}

	resolver := geom.Resolver{Logger: h.Logger}
	pages := make([]pageGeometry, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		g, err := resolver.Resolve(reader.Page(i).V, i)
		if err != nil {
			jsonError(w, fmt.Sprintf("page %d: %v", i, err), http.StatusUnprocessableEntity)
			return
		}
		pages = append(pages, pageGeometry{
			Page:        i,
			Width:       g.Width,
			Height:      g.Height,
			Rotation:    g.Rotation,
			Orientation: g.Orientation.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pages)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
