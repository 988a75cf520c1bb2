package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/meridian/internal/extract"
	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/parser"
	"github.com/sells-group/meridian/internal/store"
)

// --- Parser Mock ---

type mockParser struct {
	mock.Mock
}

func (m *mockParser) Parse(ctx context.Context, path, fileType string) (*parser.Result, error) {
	args := m.Called(ctx, path, fileType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*parser.Result), args.Error(1)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, text, docType string) extract.Outcome {
	args := m.Called(ctx, text, docType)
	return args.Get(0).(extract.Outcome)
}

// --- Observer ---

type recordingObserver struct {
	mu          sync.Mutex
	statuses    []string
	methods     []string
	degradedCnt int
}

func (o *recordingObserver) DocumentProcessed(status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *recordingObserver) ExtractionCompleted(method string, degraded bool, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.methods = append(o.methods, method)
	if degraded {
		o.degradedCnt++
	}
}

// --- Store wrappers ---

// failingExtractionsStore fails every batch insert.
type failingExtractionsStore struct {
	store.Store
	err error
}

func (s *failingExtractionsStore) CreateExtractions(context.Context, []model.Extraction) error {
	return s.err
}

// racingStore runs hook before the first UpdateDocument call, simulating a
// concurrent writer.
type racingStore struct {
	store.Store
	once sync.Once
	hook func()
}

func (s *racingStore) UpdateDocument(ctx context.Context, doc *model.Document, expected model.ProcessingStatus) error {
	s.once.Do(s.hook)
	return s.Store.UpdateDocument(ctx, doc, expected)
}
