package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/resilience"
	"github.com/sells-group/meridian/internal/store"
	"github.com/sells-group/meridian/internal/validate"
)

// ProcessResult describes a completed pipeline run.
type ProcessResult struct {
	Document         *model.Document    `json:"document"`
	Extractions      []model.Extraction `json:"extractions"`
	Method           string             `json:"method"`
	Degraded         bool               `json:"degraded"`
	DegradedReason   string             `json:"degraded_reason,omitempty"`
	ValidationErrors []string           `json:"validation_errors,omitempty"`
}

// Process runs a document through
// parsing → extracting → validating → completed. Pending, completed and
// failed documents may be processed; completed and failed ones are
// re-extracted and their new extraction rows appended. Any stage error moves
// the document to failed with the message recorded. Raw text already parsed
// is kept.
func (s *Service) Process(ctx context.Context, documentID string) (*ProcessResult, error) {
	start := time.Now()
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: process")
	}
	if doc.Status.InFlight() {
		return nil, eris.Wrapf(ErrInProgress, "ingest: document %s is %s", documentID, doc.Status)
	}

	log := zap.L().With(zap.String("document_id", doc.ID), zap.String("filename", doc.Filename))
	log.Info("ingest: processing document", zap.String("from", string(doc.Status)))

	claim := func(st model.ProcessingStatus) bool { return !st.InFlight() }
	if err := s.advance(ctx, doc, model.StatusParsing, claim, func(d *model.Document) {
		d.ErrorMessage = ""
	}); err != nil {
		return nil, err
	}

	res, err := s.run(ctx, doc, log)
	if err != nil {
		s.fail(ctx, doc, err, log)
		s.observeDocument(model.StatusFailed, start)
		return nil, eris.Wrapf(err, "ingest: process %s", documentID)
	}

	s.observeDocument(model.StatusCompleted, start)
	log.Info("ingest: document completed",
		zap.Int("fields", len(res.Extractions)),
		zap.String("method", res.Method),
		zap.Bool("degraded", res.Degraded),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// run executes the stages after the document has been claimed.
func (s *Service) run(ctx context.Context, doc *model.Document, log *zap.Logger) (*ProcessResult, error) {
	parsed, err := s.parser.Parse(ctx, doc.StoredPath, doc.FileType)
	if err != nil {
		return nil, err
	}
	if err := s.advance(ctx, doc, model.StatusExtracting, nil, func(d *model.Document) {
		d.RawText = parsed.Text
		d.PageCount = parsed.PageCount
	}); err != nil {
		return nil, err
	}

	out := s.extractor.Extract(ctx, parsed.Text, string(doc.DocumentType))
	if out.Degraded {
		log.Warn("ingest: extraction degraded", zap.String("reason", out.DegradedReason))
	}
	if s.opts.Observer != nil {
		s.opts.Observer.ExtractionCompleted(string(out.Method), out.Degraded, out.DegradedReason)
	}
	records := out.Records(doc.ID)
	if err := s.store.CreateExtractions(ctx, records); err != nil {
		return nil, eris.Wrap(err, "ingest: save extractions")
	}
	if err := s.advance(ctx, doc, model.StatusValidating, nil, nil); err != nil {
		return nil, err
	}

	clean, verrs := validate.Validate(string(doc.DocumentType), out.Values())
	if len(verrs) > 0 {
		log.Warn("ingest: validation dropped fields", zap.Strings("errors", verrs))
	}
	if err := s.advance(ctx, doc, model.StatusCompleted, nil, func(d *model.Document) {
		d.ExtractedData = clean
	}); err != nil {
		return nil, err
	}

	return &ProcessResult{
		Document:         doc,
		Extractions:      records,
		Method:           string(out.Method),
		Degraded:         out.Degraded,
		DegradedReason:   out.DegradedReason,
		ValidationErrors: verrs,
	}, nil
}

// fail records err on the document. The write outlives ctx cancellation so
// an aborted request still leaves the document in a terminal state.
func (s *Service) fail(ctx context.Context, doc *model.Document, cause error, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	msg := cause.Error()
	if err := s.advance(ctx, doc, model.StatusFailed, nil, func(d *model.Document) {
		d.ErrorMessage = msg
	}); err != nil {
		log.Error("ingest: record failure", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	log.Warn("ingest: document failed", zap.String("error", msg))
}

// advance moves doc to the next status with a compare-and-set on its current
// status. On a conflict the document is reloaded and the write retried while
// allowed accepts the reloaded status; by default only the status this run
// last wrote is accepted. doc reflects the stored row on success.
func (s *Service) advance(ctx context.Context, doc *model.Document, to model.ProcessingStatus,
	allowed func(model.ProcessingStatus) bool, mutate func(*model.Document)) error {
	owned := doc.Status
	if allowed == nil {
		allowed = func(st model.ProcessingStatus) bool { return st == owned }
	}

	cfg := resilience.ConflictRetryConfig(func(err error) bool { return errors.Is(err, store.ErrConflict) })
	cfg.OnRetry = resilience.RetryLogger("ingest: status update",
		zap.String("document_id", doc.ID), zap.String("to", string(to)))

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		next := *doc
		if mutate != nil {
			mutate(&next)
		}
		next.Status = to

		err := s.store.UpdateDocument(ctx, &next, doc.Status)
		if err == nil {
			*doc = next
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return eris.Wrapf(err, "ingest: set status %s", to)
		}

		cur, gerr := s.store.GetDocument(ctx, doc.ID)
		if gerr != nil {
			return eris.Wrap(gerr, "ingest: reload document")
		}
		if !allowed(cur.Status) {
			return eris.Wrapf(ErrInProgress, "ingest: document %s moved to %s", doc.ID, cur.Status)
		}
		*doc = *cur
		return err
	})
}

func (s *Service) observeDocument(status model.ProcessingStatus, start time.Time) {
	if s.opts.Observer != nil {
		s.opts.Observer.DocumentProcessed(string(status), time.Since(start))
	}
}
