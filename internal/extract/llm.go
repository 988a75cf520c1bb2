package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/resilience"
)

// defaultLLMConfidence is assigned when the model omits a confidence score
// or answers with a flat field→value mapping.
const defaultLLMConfidence = 0.8

var (
	errNoCompleter  = errors.New("llm not configured")
	errRateLimited  = errors.New("rate limiter")
	errMalformed    = errors.New("malformed json")
	errSchemaReject = errors.New("response shape")
)

const systemPrompt = "You are a financial document extraction specialist. " +
	"Extract structured data from the document text. " +
	"Return a JSON object with an \"extractions\" key holding an array of objects with keys: " +
	"field_name, field_value, field_type, confidence_score (0-1), context_snippet. " +
	"Only extract fields you find evidence for."

const userPrompt = "Extract the following fields from this document:\n\n%s\n\nDocument text:\n%s"

// responseSchema accepts the shapes models actually return: a bare array of
// extraction objects, or an object whose "extractions"/"fields" key holds
// such an array or a flat mapping. Any other object is a flat mapping.
const responseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "item": {
      "type": "object",
      "required": ["field_name"],
      "properties": {
        "field_name": {"type": "string", "minLength": 1},
        "field_type": {"type": ["string", "null"]},
        "confidence_score": {"type": ["number", "string", "null"]},
        "context_snippet": {"type": ["string", "null"]}
      }
    },
    "items": {"type": "array", "items": {"$ref": "#/definitions/item"}},
    "payload": {"anyOf": [{"$ref": "#/definitions/items"}, {"type": "object"}]}
  },
  "anyOf": [
    {"$ref": "#/definitions/items"},
    {
      "type": "object",
      "properties": {
        "extractions": {"$ref": "#/definitions/payload"},
        "fields": {"$ref": "#/definitions/payload"}
      }
    }
  ]
}`

var compiledResponseSchema = jsonschema.MustCompileString("extraction_response.json", responseSchema)

// extractLLM runs the LLM path: cache, rate limit, circuit breaker, bounded
// completion, then parse and normalize.
func (e *Extractor) extractLLM(ctx context.Context, text, docType string) ([]Field, bool, error) {
	if e.opts.Completer == nil {
		return nil, false, errNoCompleter
	}

	truncated := truncateRunes(text, e.opts.MaxInputChars)
	key := CacheKey(docType, truncated)
	if fields, ok := e.cacheGet(ctx, key); ok {
		return fields, true, nil
	}

	if e.opts.Limiter != nil {
		if err := e.opts.Limiter.Wait(ctx); err != nil {
			return nil, false, fmt.Errorf("%w: %v", errRateLimited, err)
		}
	}

	user := fmt.Sprintf(userPrompt, describeFields(SchemaFor(docType)), truncated)
	call := func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
		return e.opts.Completer.Complete(ctx, systemPrompt, user)
	}

	var (
		raw string
		err error
	)
	if e.opts.Breaker != nil {
		raw, err = resilience.ExecuteVal(ctx, e.opts.Breaker, call)
	} else {
		raw, err = call(ctx)
	}
	if err != nil {
		return nil, false, err
	}

	fields, err := parseResponse(raw)
	if err != nil {
		return nil, false, err
	}
	e.cacheSet(ctx, key, fields)
	return fields, false, nil
}

// degradedReason is the short, stable description recorded on a degraded
// outcome.
func degradedReason(err error) string {
	switch {
	case errors.Is(err, errNoCompleter):
		return "llm not configured"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit open"
	case errors.Is(err, errRateLimited):
		return "rate limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "llm timeout"
	case errors.Is(err, errMalformed):
		return "malformed json"
	case errors.Is(err, errSchemaReject):
		return "unexpected response shape"
	case resilience.IsTransient(err):
		return "llm unavailable"
	default:
		return "llm error"
	}
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// cleanJSON strips markdown code fences and surrounding prose, keeping the
// outermost JSON array or object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(text, closer); end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// parseResponse decodes, shape-checks and normalizes a model response.
func parseResponse(raw string) ([]Field, error) {
	dec := json.NewDecoder(strings.NewReader(cleanJSON(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, eris.Wrap(errMalformed, err.Error())
	}
	if err := compiledResponseSchema.Validate(v); err != nil {
		return nil, eris.Wrap(errSchemaReject, err.Error())
	}
	return normalize(v), nil
}

// normalize maps any accepted response shape onto a list of fields.
func normalize(v any) []Field {
	switch t := v.(type) {
	case []any:
		return fromList(t)
	case map[string]any:
		inner, ok := t["extractions"]
		if !ok {
			inner, ok = t["fields"]
		}
		if !ok {
			return fromMapping(t)
		}
		switch in := inner.(type) {
		case []any:
			return fromList(in)
		case map[string]any:
			return fromMapping(in)
		}
	}
	return nil
}

func fromList(items []any) []Field {
	out := make([]Field, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["field_name"].(string)
		if name == "" {
			continue
		}
		f := Field{
			Name:       name,
			Value:      stringify(obj["field_value"]),
			Type:       "string",
			Confidence: defaultLLMConfidence,
			Method:     model.MethodLLM,
		}
		if ft, ok := obj["field_type"].(string); ok && ft != "" {
			f.Type = ft
		}
		if c, ok := toFloat(obj["confidence_score"]); ok {
			f.Confidence = model.ClampConfidence(c)
		}
		if s, ok := obj["context_snippet"].(string); ok {
			f.ContextSnippet = s
		}
		out = append(out, f)
	}
	return out
}

func fromMapping(m map[string]any) []Field {
	out := make([]Field, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, Field{
			Name:       k,
			Value:      stringify(m[k]),
			Type:       "string",
			Confidence: defaultLLMConfidence,
			Method:     model.MethodLLM,
		})
	}
	return out
}

// stringify renders a decoded JSON value as the string-encoded field value.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func toFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
