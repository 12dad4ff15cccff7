package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zombor/i2row/internal/scanning"
)

// Extractor turns one extraction request into a decoded receipt
type Extractor interface {
	Extract(ctx context.Context, req *scanning.ExtractionRequest) (*scanning.DecodedReceipt, error)
}

// CaptureInput is one image submitted for extraction
type CaptureInput struct {
	ImageData  string // data URI
	Credential string
	ModelID    string
	Filename   string
}

// CaptureResult is what a successful capture produced
type CaptureResult struct {
	Capture *Capture
	Receipt *scanning.DecodedReceipt
	Rows    []NormalizedRow
}

// Service handles capture and ledger operations
type Service struct {
	db          DB
	extractor   Extractor
	storage     Storage
	credential  string
	modelID     string
	idGenerator IDGenerator
	timeSource  TimeSource
}

// ServiceOption configures optional Service settings
type ServiceOption func(*Service)

// WithDefaultCredential sets the API key used when a capture carries none
func WithDefaultCredential(credential string) ServiceOption {
	return func(s *Service) { s.credential = credential }
}

// WithDefaultModel sets the model used when a capture names none
func WithDefaultModel(modelID string) ServiceOption {
	return func(s *Service) { s.modelID = modelID }
}

// WithIDGenerator replaces the UUID generator
func WithIDGenerator(ids IDGenerator) ServiceOption {
	return func(s *Service) { s.idGenerator = ids }
}

// WithTimeSource replaces the wall clock
func WithTimeSource(ts TimeSource) ServiceOption {
	return func(s *Service) { s.timeSource = ts }
}

// NewService creates a new Service
func NewService(db DB, extractor Extractor, storage Storage, opts ...ServiceOption) *Service {
	s := &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	filenameCharsRe = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

var extensionsByMimeType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"image/heic":      ".heic",
	"image/heif":      ".heif",
	"application/pdf": ".pdf",
}

// sanitizeFilename strips special characters and truncates long phone-generated names
func sanitizeFilename(filename, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = filenameCharsRe.ReplaceAllString(base, "")
	base = whitespaceRe.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "capture"
	}

	if ext == "" || filenameCharsRe.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = extensionsByMimeType[mimeType]
	}
	return base + ext
}

// ProcessCapture extracts rows from a captured image and stores them
func (s *Service) ProcessCapture(ctx context.Context, in CaptureInput) (*CaptureResult, error) {
	history, err := s.RecentHistory(scanning.MaxHistoryLines)
	if err != nil {
		return nil, err
	}

	credential := in.Credential
	if credential == "" {
		credential = s.credential
	}
	modelID := in.ModelID
	if modelID == "" {
		modelID = s.modelID
	}

	req, err := scanning.NewExtractionRequest(in.ImageData, history, modelID, credential)
	if err != nil {
		return nil, err
	}

	receipt, err := s.extractor.Extract(ctx, req)
	if err != nil {
		slog.Error("Failed to extract receipt",
			"filename", in.Filename,
			"content_type", req.MimeType,
			"file_size", len(req.Image),
			"error", err,
		)
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}

	captureID := s.idGenerator.Generate()
	now := s.timeSource.Now()

	rows := MapToRows(receipt, s.idGenerator)
	rowIDs := make([]string, 0, len(rows))
	for i := range rows {
		rows[i].CaptureID = captureID
		rows[i].CreatedAt = now
		rowIDs = append(rowIDs, rows[i].ID)
	}

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", captureID, sanitizeFilename(in.Filename, req.MimeType)), req.Image)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	capture := &Capture{
		ID:          captureID,
		Filename:    savedPath,
		ContentType: req.MimeType,
		RowIDs:      rowIDs,
		CreatedAt:   now,
	}
	if err := s.db.SaveCapture(capture); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving capture to database: %w", err)
	}

	if err := s.db.SaveRows(rows); err != nil {
		s.db.DeleteCapture(captureID)
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving rows to database: %w", err)
	}

	slog.Info("Processed capture", "capture_id", captureID, "rows", len(rows), "tier", receipt.Tier.String())

	return &CaptureResult{Capture: capture, Receipt: receipt, Rows: rows}, nil
}

// ListRows returns all rows oldest first
func (s *Service) ListRows() ([]*NormalizedRow, error) {
	rows, err := s.db.ListRows()
	if err != nil {
		return nil, fmt.Errorf("listing rows: %w", err)
	}
	return rows, nil
}

// UpdateRow applies a patch to a stored row and returns the result
func (s *Service) UpdateRow(id string, patch RowPatch) (*NormalizedRow, error) {
	row, err := s.db.GetRow(id)
	if err != nil {
		return nil, fmt.Errorf("getting row: %w", err)
	}
	patch.Apply(row)
	if err := s.db.UpdateRow(row); err != nil {
		return nil, fmt.Errorf("updating row: %w", err)
	}
	return row, nil
}

// DeleteRow removes a single row
func (s *Service) DeleteRow(id string) error {
	if err := s.db.DeleteRow(id); err != nil {
		return fmt.Errorf("deleting row: %w", err)
	}
	return nil
}

// ClearAll removes every row, capture and stored image
func (s *Service) ClearAll() error {
	captures, err := s.db.ListCaptures()
	if err != nil {
		return fmt.Errorf("listing captures: %w", err)
	}
	for _, c := range captures {
		if err := s.storage.Delete(c.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", c.Filename, "error", err)
		}
		if err := s.db.DeleteCapture(c.ID); err != nil {
			return fmt.Errorf("deleting capture %s: %w", c.ID, err)
		}
	}
	if err := s.db.ClearRows(); err != nil {
		return fmt.Errorf("clearing rows: %w", err)
	}
	return nil
}

// RecentHistory returns the last n rows as prompt history, oldest first
func (s *Service) RecentHistory(n int) ([]scanning.HistoryLine, error) {
	rows, err := s.db.ListRows()
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if n >= 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return HistoryFromRows(rows), nil
}

// ListCaptures returns all capture records
func (s *Service) ListCaptures() ([]*Capture, error) {
	captures, err := s.db.ListCaptures()
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	return captures, nil
}

// GetCaptureFile retrieves the stored image for a capture
func (s *Service) GetCaptureFile(id string) ([]byte, string, error) {
	capture, err := s.db.GetCapture(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting capture: %w", err)
	}

	data, err := s.storage.Get(capture.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting capture file: %w", err)
	}

	return data, capture.ContentType, nil
}
