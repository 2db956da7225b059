package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/tender-cli/internal/acquire"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/pipeline"
	"github.com/sells-group/tender-cli/internal/store"
)

const testReg = "0373100000124000001"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "tenders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedTender(t *testing.T, st store.Store, reg string) {
	t.Helper()
	_, err := st.UpsertByKey(context.Background(), model.NewTenderRecord(reg, model.TenderMetadata{
		Name:     "Поставка офисной мебели",
		FilesURL: "https://tenderland.ru/files/" + reg + ".zip",
	}))
	require.NoError(t, err)
}

// fakeRunner records pipeline runs. When gate is set every run blocks until
// it is closed.
type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
	gate  chan struct{}
	done  chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{errs: make(map[string]error), done: make(chan string, 16)}
}

func (f *fakeRunner) Run(ctx context.Context, key string, _ ...acquire.Option) (*pipeline.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	err := f.errs[key]
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
		}
	}
	defer func() { f.done <- key }()
	if err != nil {
		return nil, err
	}
	return &pipeline.RunResult{RegNumber: key, Stage: model.StageReportGenerated}, nil
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeLookup serves tenders from a fixed set, creating them in st.
type fakeLookup struct {
	st    store.Store
	known map[string]bool
}

func (l *fakeLookup) Lookup(ctx context.Context, reg string) (*model.TenderRecord, error) {
	if !l.known[reg] {
		return nil, errTestNotFound
	}
	rec := model.NewTenderRecord(reg, model.TenderMetadata{Name: "из фида", FilesURL: "https://tenderland.ru/files/x.zip"})
	if _, err := l.st.UpsertByKey(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
