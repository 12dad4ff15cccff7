package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zombor/i2row/internal/scanning"
)

// maxCaptureBody bounds the data-URI request; base64 inflates a 50MB photo to about 67MB
const maxCaptureBody = int64(70 << 20)

type errorResponse struct {
	Error       string `json:"error"`
	RawResponse string `json:"rawResponse,omitempty"`
}

type ocrRequest struct {
	Image    string `json:"image"`
	APIKey   string `json:"apiKey,omitempty"`
	ModelID  string `json:"modelId,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type ocrResponse struct {
	Receipt   *scanning.DecodedReceipt `json:"receipt"`
	Rows      []NormalizedRow          `json:"rows"`
	CaptureID string                   `json:"captureId"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, raw string) {
	writeJSON(w, status, errorResponse{Error: message, RawResponse: raw})
}

// captureErrorStatus maps extraction failures onto HTTP responses
func captureErrorStatus(err error) (int, errorResponse) {
	var (
		configErr *scanning.ConfigurationError
		blocked   *scanning.ContentPolicyBlock
		decodeErr *scanning.DecodeFailure
		inferErr  *scanning.InferenceError
	)
	switch {
	case errors.Is(err, scanning.ErrInvalidImage):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.As(err, &configErr):
		return http.StatusInternalServerError, errorResponse{Error: configErr.Error()}
	case errors.As(err, &blocked):
		return http.StatusUnprocessableEntity, errorResponse{Error: blocked.Error()}
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity, errorResponse{Error: decodeErr.Message, RawResponse: decodeErr.RawText}
	case errors.As(err, &inferErr):
		return http.StatusBadGateway, errorResponse{Error: inferErr.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: "model call timed out"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Failed to process OCR request"}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOCR runs one capture through extraction and stores the rows
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBody)

	var req ocrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image is too large. Please compress or resize it.", "")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "Image data is required", "")
		return
	}

	result, err := s.service.ProcessCapture(r.Context(), CaptureInput{
		ImageData:  req.Image,
		Credential: req.APIKey,
		ModelID:    req.ModelID,
		Filename:   req.Filename,
	})
	if err != nil {
		status, body := captureErrorStatus(err)
		slog.Error("Error processing capture", "filename", req.Filename, "status", status, "error", err)
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, ocrResponse{
		Receipt:   result.Receipt,
		Rows:      result.Rows,
		CaptureID: result.Capture.ID,
	})
}

func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ListRows()
	if err != nil {
		slog.Error("Error listing rows", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch RowPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	row, err := s.service.UpdateRow(id, patch)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Row not found", "")
		return
	}
	if err != nil {
		slog.Error("Error updating row", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error updating row", "")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.service.DeleteRow(id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Row not found", "")
		return
	}
	if err != nil {
		slog.Error("Error deleting row", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting row", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearRows(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearAll(); err != nil {
		slog.Error("Error clearing rows", "error", err)
		writeError(w, http.StatusInternalServerError, "Error clearing data", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, "csv", "text/csv; charset=utf-8", s.service.ExportCSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", s.service.ExportXLSX)
}

// serveExport renders into memory first so a failure can still produce an error status
func (s *Server) serveExport(w http.ResponseWriter, ext, contentType string, export func(io.Writer) error) {
	var buf bytes.Buffer
	if err := export(&buf); err != nil {
		slog.Error("Error exporting rows", "format", ext, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	setAttachment(w, ExportFilename(s.service.Now(), ext))
	w.Header().Set("Content-Type", contentType)
	w.Write(buf.Bytes())
}

func setAttachment(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote(filename)))
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	captures, err := s.service.ListCaptures()
	if err != nil {
		slog.Error("Error listing captures", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusOK, captures)
}

// handleGetCaptureFile returns the stored image for a capture
func (s *Server) handleGetCaptureFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetCaptureFile(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found", "")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
