package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/meridian/internal/config"
	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/resilience"
	"github.com/sells-group/meridian/pkg/anthropic"
	"github.com/sells-group/meridian/pkg/openai"
)

const statementText = "Acme Holdings Q3 FY2024\nRevenue: $150,000,000\nEBITDA: $37,500,000\nNet income: $12,000,000"

func fieldByName(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// --- Schema registry ---

func TestSchemaFor(t *testing.T) {
	fs := SchemaFor("financial_statement")
	require.Len(t, fs, 13)
	assert.Equal(t, "revenue", fs[0].Name)
	assert.Equal(t, "currency", fs[12].Name)

	assert.Len(t, SchemaFor("investor_report"), 9)

	def := SchemaFor("pitch_deck")
	require.Len(t, def, 6)
	assert.Equal(t, "key_figures", def[5].Name)
	assert.Equal(t, def, SchemaFor(""))
}

func TestDescribeFields(t *testing.T) {
	out := describeFields([]FieldDef{
		{Name: "revenue", Type: "number", Description: "Revenue"},
		{Name: "period", Type: "string", Description: "Period"},
	})
	assert.Equal(t, "- revenue (number): Revenue\n- period (string): Period", out)
}

// --- Regex path ---

func TestExtractRegex_HeadlineFigures(t *testing.T) {
	fields := ExtractRegex(statementText)
	require.Len(t, fields, 3)

	rev, ok := fieldByName(fields, "revenue")
	require.True(t, ok)
	assert.Equal(t, "150000000", rev.Value)
	assert.Equal(t, "number", rev.Type)
	assert.Equal(t, 0.6, rev.Confidence)
	assert.Equal(t, model.MethodRegex, rev.Method)
	assert.Contains(t, rev.ContextSnippet, "Revenue: $150,000,000")

	ebitda, ok := fieldByName(fields, "ebitda")
	require.True(t, ok)
	assert.Equal(t, "37500000", ebitda.Value)
}

func TestExtractRegex_NoKeywords(t *testing.T) {
	assert.Empty(t, ExtractRegex("The quarterly letter discusses hiring and product roadmap."))
}

func TestExtractRegex_FirstMatchWins(t *testing.T) {
	fields := ExtractRegex("Revenue: $10 in Q1. Revenue: $99 in Q2.")
	require.Len(t, fields, 1)
	assert.Equal(t, "10", fields[0].Value)
}

func TestExtractRegex_AliasesAndUnits(t *testing.T) {
	text := "NET SALES 2.5 billion; net profit: $300K; Total Debt: $45 million; Cash and cash equivalents: $1,200"
	fields := ExtractRegex(text)

	rev, _ := fieldByName(fields, "revenue")
	assert.Equal(t, "2.5B", rev.Value)
	ni, _ := fieldByName(fields, "net_income")
	assert.Equal(t, "300K", ni.Value)
	debt, _ := fieldByName(fields, "total_debt")
	assert.Equal(t, "45M", debt.Value)
	cash, _ := fieldByName(fields, "cash_and_equivalents")
	assert.Equal(t, "1200", cash.Value)
}

func TestExtractRegex_UnitMustStandAlone(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"next line K-1", "Revenue: $150,000,000\nK-1 statements were mailed to limited partners.", "150000000"},
		{"same line K-1", "Revenue: $150,000,000 K-1 statements follow.", "150000000"},
		{"M&A after figure", "Revenue: $40 M&A activity slowed.", "40"},
		{"unit word on next line", "Revenue: $12\nmillion customers served", "12"},
		{"unit at end of text", "Revenue: $12 m", "12M"},
		{"unit before punctuation", "Revenue: $3.5bn, up 4%", "3.5B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := ExtractRegex(tt.text)
			rev, ok := fieldByName(fields, "revenue")
			require.True(t, ok)
			assert.Equal(t, tt.want, rev.Value)
		})
	}
}

func TestExtractRegex_LabelWithoutNumber(t *testing.T) {
	assert.Empty(t, ExtractRegex("Revenue grew strongly; EBITDA margins expanded."))
}

func TestSnippet_Window(t *testing.T) {
	prefix := strings.Repeat("x", 80)
	suffix := strings.Repeat("y", 80)
	text := prefix + "Revenue: $5" + suffix
	fields := ExtractRegex(text)
	require.Len(t, fields, 1)
	assert.Equal(t, strings.Repeat("x", 50)+"Revenue: $5"+strings.Repeat("y", 50), fields[0].ContextSnippet)
}

func TestSnippet_MultiByte(t *testing.T) {
	text := strings.Repeat("é", 60) + "EBITDA: $7"
	fields := ExtractRegex(text)
	require.Len(t, fields, 1)
	assert.Equal(t, strings.Repeat("é", 50)+"EBITDA: $7", fields[0].ContextSnippet)
}

// --- JSON handling ---

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced bare", "```\n[1,2]\n```", `[1,2]`},
		{"prose around array", "Here you go: [{\"field_name\":\"x\"}] hope it helps", `[{"field_name":"x"}]`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestParseResponse_Shapes(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		fields, err := parseResponse(`[{"field_name":"revenue","field_value":150000000,"field_type":"number","confidence_score":0.95,"context_snippet":"Revenue: $150M"}]`)
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, "150000000", fields[0].Value)
		assert.Equal(t, "number", fields[0].Type)
		assert.Equal(t, 0.95, fields[0].Confidence)
		assert.Equal(t, "Revenue: $150M", fields[0].ContextSnippet)
		assert.Equal(t, model.MethodLLM, fields[0].Method)
	})

	t.Run("extractions key", func(t *testing.T) {
		fields, err := parseResponse(`{"extractions":[{"field_name":"nav","field_value":"12.5M","confidence_score":1.7}]}`)
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, 1.0, fields[0].Confidence)
		assert.Equal(t, "string", fields[0].Type)
	})

	t.Run("fields key", func(t *testing.T) {
		fields, err := parseResponse(`{"fields":[{"field_name":"irr","field_value":0.18,"confidence_score":"-0.2"}]}`)
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, "0.18", fields[0].Value)
		assert.Equal(t, 0.0, fields[0].Confidence)
	})

	t.Run("flat mapping", func(t *testing.T) {
		fields, err := parseResponse(`{"revenue": 100, "period": "Q3 2024"}`)
		require.NoError(t, err)
		require.Len(t, fields, 2)
		assert.Equal(t, Field{Name: "period", Value: "Q3 2024", Type: "string", Confidence: 0.8, Method: model.MethodLLM}, fields[0])
		assert.Equal(t, Field{Name: "revenue", Value: "100", Type: "string", Confidence: 0.8, Method: model.MethodLLM}, fields[1])
	})

	t.Run("mapping under extractions", func(t *testing.T) {
		fields, err := parseResponse(`{"extractions": {"ebitda": "37.5M"}}`)
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, "ebitda", fields[0].Name)
		assert.Equal(t, "37.5M", fields[0].Value)
	})

	t.Run("empty list", func(t *testing.T) {
		fields, err := parseResponse(`{"extractions": []}`)
		require.NoError(t, err)
		assert.Empty(t, fields)
	})
}

func TestParseResponse_Rejects(t *testing.T) {
	_, err := parseResponse("not json at all")
	assert.True(t, errors.Is(err, errMalformed))

	_, err = parseResponse(`[{"field_value": 1}]`)
	assert.True(t, errors.Is(err, errSchemaReject))

	_, err = parseResponse(`{"extractions": "revenue"}`)
	assert.True(t, errors.Is(err, errSchemaReject))

	_, err = parseResponse(`42`)
	assert.True(t, errors.Is(err, errSchemaReject))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "éé", truncateRunes("ééé", 2))
}

// --- Extractor ---

func TestExtract_NoCompleterDegradesToRegex(t *testing.T) {
	ex := New(Options{})
	out := ex.Extract(context.Background(), statementText, "financial_statement")

	assert.True(t, out.Degraded)
	assert.Equal(t, "llm not configured", out.DegradedReason)
	assert.Equal(t, model.MethodRegex, out.Method)
	assert.Len(t, out.Fields, 3)
	assert.False(t, ex.LLMEnabled())
}

func TestExtract_LLMSuccess(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, systemPrompt, mock.MatchedBy(func(user string) bool {
		return strings.Contains(user, "- total_debt (number)") && strings.Contains(user, "Revenue: $150,000,000")
	})).Return("```json\n{\"extractions\":[{\"field_name\":\"revenue\",\"field_value\":150000000,\"field_type\":\"number\",\"confidence_score\":0.97}]}\n```", nil).Once()

	out := New(Options{Completer: c}).Extract(context.Background(), statementText, "financial_statement")

	assert.False(t, out.Degraded)
	assert.Equal(t, model.MethodLLM, out.Method)
	require.Len(t, out.Fields, 1)
	assert.Equal(t, "150000000", out.Fields[0].Value)
	c.AssertExpectations(t)
}

func TestExtract_TruncatesInput(t *testing.T) {
	text := strings.Repeat("a", 20) + "TAIL"
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(user string) bool {
		return strings.HasSuffix(user, "Document text:\n"+strings.Repeat("a", 10))
	})).Return(`[]`, nil).Once()

	out := New(Options{Completer: c, MaxInputChars: 10}).Extract(context.Background(), text, "")
	assert.False(t, out.Degraded)
	c.AssertExpectations(t)
}

func TestExtract_MalformedFallsBack(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("I could not find anything.", nil)

	out := New(Options{Completer: c}).Extract(context.Background(), statementText, "financial_statement")
	assert.True(t, out.Degraded)
	assert.Equal(t, "malformed json", out.DegradedReason)
	assert.Equal(t, model.MethodRegex, out.Method)
	assert.Len(t, out.Fields, 3)
}

func TestExtract_CompleterErrorFallsBack(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", resilience.NewTransientError(errors.New("503 overloaded"), 503))

	out := New(Options{Completer: c}).Extract(context.Background(), statementText, "")
	assert.True(t, out.Degraded)
	assert.Equal(t, "llm unavailable", out.DegradedReason)
}

func TestExtract_Timeout(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	start := time.Now()
	out := New(Options{Completer: c, Timeout: 20 * time.Millisecond}).Extract(context.Background(), statementText, "")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, out.Degraded)
	assert.Equal(t, "llm timeout", out.DegradedReason)
}

func TestExtract_CircuitOpensAfterFailures(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("boom")).Times(2)

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: "llm", FailureThreshold: 2, ResetTimeout: time.Hour,
	})
	ex := New(Options{Completer: c, Breaker: cb})

	for i := 0; i < 2; i++ {
		out := ex.Extract(context.Background(), statementText, "")
		assert.Equal(t, "llm error", out.DegradedReason)
	}
	out := ex.Extract(context.Background(), statementText, "")
	assert.True(t, out.Degraded)
	assert.Equal(t, "circuit open", out.DegradedReason)
	assert.Len(t, out.Fields, 3)
	c.AssertNumberOfCalls(t, "Complete", 2)
}

func TestExtract_RateLimited(t *testing.T) {
	c := &mockCompleter{}
	ex := New(Options{Completer: c, Limiter: rate.NewLimiter(0, 0)})

	out := ex.Extract(context.Background(), statementText, "")
	assert.True(t, out.Degraded)
	assert.Equal(t, "rate limited", out.DegradedReason)
	c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtract_CachesSuccessfulResults(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(`[{"field_name":"nav","field_value":"12.5M","confidence_score":0.9}]`, nil).Once()

	cache := newMemCache()
	ex := New(Options{Completer: c, Cache: cache})

	first := ex.Extract(context.Background(), "NAV 12.5M", "investor_report")
	second := ex.Extract(context.Background(), "NAV 12.5M", "investor_report")

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Fields, second.Fields)
	assert.Len(t, cache.data, 1)
	c.AssertExpectations(t)
}

func TestExtract_FailuresAreNotCached(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("{oops", nil)

	cache := newMemCache()
	New(Options{Completer: c, Cache: cache}).Extract(context.Background(), statementText, "")
	assert.Empty(t, cache.data)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("financial_statement", "text")
	assert.True(t, strings.HasPrefix(a, "extract:"))
	assert.Equal(t, a, CacheKey("financial_statement", "text"))
	assert.NotEqual(t, a, CacheKey("investor_report", "text"))
}

func TestOutcome_RecordsAndValues(t *testing.T) {
	out := Outcome{Fields: []Field{
		{Name: "revenue", Value: "150", Type: "number", Confidence: 0.6, Method: model.MethodRegex},
		{Name: "revenue", Value: "999", Type: "number", Confidence: 0.6, Method: model.MethodRegex},
	}}

	recs := out.Records("doc-1")
	require.Len(t, recs, 2)
	assert.Equal(t, "doc-1", recs[0].DocumentID)
	assert.Equal(t, model.MethodRegex, recs[0].Method)

	assert.Equal(t, map[string]any{"revenue": "150"}, out.Values())
}

// --- Completers ---

func TestAnthropicCompleter(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-test" && req.Temperature != nil && *req.Temperature == 0 &&
			len(req.System) == 1 && req.System[0].Text == "sys" && req.Messages[0].Content == "usr"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "[]"}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 2},
	}, nil)

	out, err := NewAnthropicCompleter(client, "claude-test", 0).Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	client.AssertExpectations(t)
}

func TestOpenAICompleter(t *testing.T) {
	client := &mockOpenAIClient{}
	client.On("CreateCompletion", mock.Anything, openai.CompletionRequest{
		Model: "gpt-4o", SystemPrompt: "sys", UserPrompt: "usr", JSONObject: true,
	}).Return(&openai.CompletionResponse{Content: `{"extractions":[]}`}, nil)

	out, err := NewOpenAICompleter(client, "gpt-4o").Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, `{"extractions":[]}`, out)
}

func TestOpenAICompleter_ErrorPassesThrough(t *testing.T) {
	client := &mockOpenAIClient{}
	client.On("CreateCompletion", mock.Anything, mock.Anything).Return(nil, errors.New("bad key"))

	_, err := NewOpenAICompleter(client, "gpt-4o").Complete(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestNewCompleter(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{Provider: "none"}}
	c, err := NewCompleter(cfg)
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.LLM.Provider = "anthropic"
	c, err = NewCompleter(cfg)
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.LLM.Provider = "openai"
	cfg.OpenAI.Key = "sk-test"
	c, err = NewCompleter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompleter{}, c)

	cfg.LLM.Provider = "cohere"
	_, err = NewCompleter(cfg)
	assert.Error(t, err)
}

func TestFromConfig_StateHook(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		Provider: "none", TimeoutSecs: 5, MaxInputChars: 100, RequestsPerMinute: 60,
		CircuitFailureThreshold: 1, CircuitResetSecs: 60,
	}}
	var transitions []string
	ex, err := FromConfig(cfg, nil, func(_ string, from, to resilience.CircuitState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})
	require.NoError(t, err)
	assert.False(t, ex.LLMEnabled())
	assert.Equal(t, 100, ex.opts.MaxInputChars)
	assert.Equal(t, 5*time.Second, ex.opts.Timeout)
	require.NotNil(t, ex.opts.Limiter)

	_ = ex.opts.Breaker.Execute(context.Background(), func(context.Context) error { return errors.New("x") })
	assert.Equal(t, []string{"closed->open"}, transitions)
}
