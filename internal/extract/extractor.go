// Package extract turns document text into candidate field extractions, using
// an LLM when one is configured and a regex scan otherwise.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/resilience"
)

// DefaultMaxInputChars bounds the document prefix sent to the LLM.
const DefaultMaxInputChars = 12000

// DefaultTimeout bounds a single LLM completion.
const DefaultTimeout = 60 * time.Second

// Field is one candidate extraction.
type Field struct {
	Name           string                 `json:"field_name"`
	Value          string                 `json:"field_value"`
	Type           string                 `json:"field_type"`
	Confidence     float64                `json:"confidence_score"`
	ContextSnippet string                 `json:"context_snippet,omitempty"`
	Method         model.ExtractionMethod `json:"extraction_method"`
}

// Outcome is the result of Extract. When the LLM path could not be used or
// failed, Degraded is set, DegradedReason says why and Fields come from the
// regex scan.
type Outcome struct {
	Fields         []Field                `json:"fields"`
	Method         model.ExtractionMethod `json:"method"`
	Degraded       bool                   `json:"degraded"`
	DegradedReason string                 `json:"degraded_reason,omitempty"`
	Cached         bool                   `json:"cached,omitempty"`
}

// Records converts the outcome into Extraction rows owned by documentID.
func (o Outcome) Records(documentID string) []model.Extraction {
	out := make([]model.Extraction, 0, len(o.Fields))
	for _, f := range o.Fields {
		out = append(out, model.Extraction{
			DocumentID:      documentID,
			FieldName:       f.Name,
			FieldValue:      f.Value,
			FieldType:       f.Type,
			ConfidenceScore: model.ClampConfidence(f.Confidence),
			Method:          f.Method,
			ContextSnippet:  f.ContextSnippet,
		})
	}
	return out
}

// Values flattens the fields into a name→value map. The first value seen for
// a name wins.
func (o Outcome) Values() map[string]any {
	m := make(map[string]any, len(o.Fields))
	for _, f := range o.Fields {
		if _, ok := m[f.Name]; !ok {
			m[f.Name] = f.Value
		}
	}
	return m
}

// Completer runs a single completion and returns the raw model text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Cache stores LLM extraction results keyed by CacheKey.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Options configures an Extractor. Only Completer is needed for the LLM
// path; the rest are optional.
type Options struct {
	Completer     Completer
	Limiter       *rate.Limiter
	Cache         Cache
	Breaker       *resilience.CircuitBreaker
	MaxInputChars int
	Timeout       time.Duration
}

// Extractor extracts fields from document text.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Extractor{opts: opts}
}

// LLMEnabled reports whether a completer is configured.
func (e *Extractor) LLMEnabled() bool {
	return e.opts.Completer != nil
}

// Extract returns candidate fields for text. It never fails: any problem on
// the LLM path yields a degraded outcome from the regex scan.
func (e *Extractor) Extract(ctx context.Context, text, docType string) Outcome {
	log := zap.L().With(zap.String("document_type", docType))

	fields, cached, err := e.extractLLM(ctx, text, docType)
	if err == nil {
		return Outcome{Fields: fields, Method: model.MethodLLM, Cached: cached}
	}

	reason := degradedReason(err)
	if !errors.Is(err, errNoCompleter) {
		log.Warn("extract: llm path failed, using regex fallback",
			zap.String("reason", reason), zap.Error(err))
	}
	return Outcome{
		Fields:         ExtractRegex(text),
		Method:         model.MethodRegex,
		Degraded:       true,
		DegradedReason: reason,
	}
}

// CacheKey identifies an extraction request: the document type and the
// truncated text actually sent to the model.
func CacheKey(docType, truncated string) string {
	h := sha256.New()
	h.Write([]byte(docType))
	h.Write([]byte{0})
	h.Write([]byte(truncated))
	return "extract:" + hex.EncodeToString(h.Sum(nil))
}

func (e *Extractor) cacheGet(ctx context.Context, key string) ([]Field, bool) {
	if e.opts.Cache == nil {
		return nil, false
	}
	data, ok, err := e.opts.Cache.Get(ctx, key)
	if err != nil {
		zap.L().Debug("extract: cache lookup failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var fields []Field
	if err := json.Unmarshal(data, &fields); err != nil {
		zap.L().Debug("extract: discarding unreadable cache entry", zap.Error(err))
		return nil, false
	}
	return fields, true
}

func (e *Extractor) cacheSet(ctx context.Context, key string, fields []Field) {
	if e.opts.Cache == nil {
		return
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := e.opts.Cache.Set(ctx, key, data); err != nil {
		zap.L().Debug("extract: cache write failed", zap.Error(err))
	}
}
