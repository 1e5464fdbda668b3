package service

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/llm"
	"github.com/bigkaa/dataviz/internal/repository/memory"
)

// testLogger - логгер, отбрасывающий вывод.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Репозитории в памяти ---

type (
	memFileRepo      = memory.FileRecords
	memDataModelRepo = memory.DataModels
	memUserRepo      = memory.Users
)

func newMemFileRepo() *memFileRepo {
	return memory.NewFileRecords()
}

// newMemDataModelRepo - репозиторий моделей, где существуют только файлы fileIDs.
func newMemDataModelRepo(fileIDs ...int64) *memDataModelRepo {
	return memory.NewDataModels(func(id int64) bool {
		return slices.Contains(fileIDs, id)
	})
}

func newMemUserRepo() *memUserRepo {
	return memory.NewUsers()
}

// failingFileRepo - репозиторий файлов, у которого Create и Update
// возвращают заданные ошибки.
type failingFileRepo struct {
	*memFileRepo
	createErr error
	updateErr error
}

func (f *failingFileRepo) Create(ctx context.Context, rec *model.FileRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.memFileRepo.Create(ctx, rec)
}

func (f *failingFileRepo) Update(ctx context.Context, rec *model.FileRecord) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.memFileRepo.Update(ctx, rec)
}

// --- Mock llm.Completer ---

// mockCompleter - llm.Completer с подменяемой функцией.
type mockCompleter struct {
	completeFn func(ctx context.Context, req llm.Request) (string, error)
	calls      int
	last       llm.Request
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.calls++
	m.last = req
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return "", nil
}
