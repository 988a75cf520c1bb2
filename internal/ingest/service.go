// Package ingest stores uploaded documents and drives them through the
// parse, extract and validate pipeline.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/extract"
	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/parser"
	"github.com/sells-group/meridian/internal/store"
)

var (
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("document exceeds upload size limit")
	// ErrInProgress is returned when a document is already mid-pipeline.
	ErrInProgress = errors.New("document is already being processed")
	// ErrInvalidUpload is returned for uploads missing a name or carrying an
	// unknown document type.
	ErrInvalidUpload = errors.New("invalid upload")
)

// Parser turns a stored file into text.
type Parser interface {
	Parse(ctx context.Context, path, fileType string) (*parser.Result, error)
}

// Extractor pulls fields from document text. It never fails; degraded runs
// are reported on the Outcome.
type Extractor interface {
	Extract(ctx context.Context, text, docType string) extract.Outcome
}

// Observer is notified of pipeline results.
type Observer interface {
	DocumentProcessed(status string, elapsed time.Duration)
	ExtractionCompleted(method string, degraded bool, reason string)
}

// Options configures a Service.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	Observer       Observer
}

// Service stores uploads and processes documents.
type Service struct {
	store     store.Store
	parser    Parser
	extractor Extractor
	opts      Options
}

// NewService creates a Service.
func NewService(st store.Store, p Parser, x Extractor, opts Options) *Service {
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	return &Service{store: st, parser: p, extractor: x, opts: opts}
}

// UploadRequest is a new document to store.
type UploadRequest struct {
	Filename     string
	CompanyID    string
	DocumentType model.DocumentType
	Content      io.Reader
}

// Upload writes the content under the upload directory as <uuid><ext> and
// creates a pending document.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*model.Document, error) {
	name := filepath.Base(strings.TrimSpace(req.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, eris.Wrap(ErrInvalidUpload, "ingest: filename is required")
	}
	if !req.DocumentType.Valid() {
		return nil, eris.Wrapf(ErrInvalidUpload, "ingest: unknown document type %q", req.DocumentType)
	}

	content, err := s.readLimited(req.Content)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(name))
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "ingest: create upload dir")
	}
	stored := filepath.Join(s.opts.UploadDir, uuid.NewString()+ext)
	if err := os.WriteFile(stored, content, 0o644); err != nil {
		return nil, eris.Wrap(err, "ingest: write upload")
	}

	doc := &model.Document{
		CompanyID:    req.CompanyID,
		Filename:     name,
		FileType:     strings.TrimPrefix(ext, "."),
		StoredPath:   stored,
		Size:         int64(len(content)),
		DocumentType: req.DocumentType,
		Status:       model.StatusPending,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		_ = os.Remove(stored)
		return nil, eris.Wrap(err, "ingest: create document")
	}

	zap.L().Info("ingest: document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int64("size", doc.Size),
	)
	return doc, nil
}

func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, eris.Wrap(ErrInvalidUpload, "ingest: no content")
	}
	if s.opts.MaxUploadBytes <= 0 {
		b, err := io.ReadAll(r)
		return b, eris.Wrap(err, "ingest: read upload")
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, s.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read upload")
	}
	if n > s.opts.MaxUploadBytes {
		return nil, eris.Wrapf(ErrTooLarge, "ingest: limit is %d bytes", s.opts.MaxUploadBytes)
	}
	return buf.Bytes(), nil
}

// GetDocument returns a document by ID.
func (s *Service) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: get document")
	}
	return doc, nil
}

// ListDocuments returns documents matching the filter, newest first.
func (s *Service) ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]model.Document, error) {
	docs, err := s.store.ListDocuments(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list documents")
	}
	return docs, nil
}

// DeleteDocument removes a document, its extractions and its stored file.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return eris.Wrap(err, "ingest: delete document")
	}
	if doc.Status.InFlight() {
		return eris.Wrapf(ErrInProgress, "ingest: document %s is %s", id, doc.Status)
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return eris.Wrap(err, "ingest: delete document")
	}
	if err := os.Remove(doc.StoredPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("ingest: remove stored file", zap.String("path", doc.StoredPath), zap.Error(err))
	}
	return nil
}

// ListExtractions returns the extraction rows recorded for a document.
func (s *Service) ListExtractions(ctx context.Context, documentID string) ([]model.Extraction, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, eris.Wrap(err, "ingest: list extractions")
	}
	ex, err := s.store.ListExtractions(ctx, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list extractions")
	}
	return ex, nil
}

// ReviewRequest records a human review of one extraction.
type ReviewRequest struct {
	Validated      bool    `json:"validated"`
	ValidatedBy    string  `json:"validated_by"`
	CorrectedValue *string `json:"corrected_value"`
}

// ReviewExtraction marks an extraction as reviewed. A corrected value
// replaces the extracted one and is recorded as a manual extraction with
// full confidence.
func (s *Service) ReviewExtraction(ctx context.Context, id string, req ReviewRequest) (*model.Extraction, error) {
	e, err := s.store.GetExtraction(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: review extraction")
	}
	e.Validated = req.Validated
	e.ValidatedBy = req.ValidatedBy
	if req.CorrectedValue != nil {
		e.FieldValue = *req.CorrectedValue
		e.Method = model.MethodManual
		e.ConfidenceScore = 1
	}
	if err := s.store.UpdateExtraction(ctx, e); err != nil {
		return nil, eris.Wrap(err, "ingest: review extraction")
	}
	return e, nil
}
