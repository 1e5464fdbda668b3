// Пакет memory - потокобезопасные in-memory реализации репозиториев.
//
// Повторяют контракт PostgreSQL-репозиториев: сортировку по ID,
// ошибки ErrNotFound, ErrConflict и ErrLinkedFileNotFound,
// неизменность UploadedAt и владельца модели.
// Пакет только для тестов: используется тестами сервисного слоя
// и HTTP-обработчиков, в сборку сервиса не входит.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/repository"
)

// page возвращает срез ids[offset:offset+limit] с учётом границ.
func page(ids []int64, limit, offset int) []int64 {
	if offset >= len(ids) {
		return nil
	}
	return ids[offset:min(offset+limit, len(ids))]
}

// --- FileRecords ---

// FileRecords - FileRecordRepository в памяти.
type FileRecords struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]model.FileRecord
}

var _ repository.FileRecordRepository = (*FileRecords)(nil)

// NewFileRecords создаёт пустой репозиторий файлов.
func NewFileRecords() *FileRecords {
	return &FileRecords{records: make(map[int64]model.FileRecord)}
}

// Exists сообщает, есть ли запись с таким ID.
func (m *FileRecords) Exists(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok
}

func (m *FileRecords) Create(_ context.Context, rec *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	rec.UploadedAt = time.Now().UTC()
	m.records[rec.ID] = *rec
	return nil
}

func (m *FileRecords) GetByID(_ context.Context, id int64) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (m *FileRecords) List(_ context.Context, limit, offset int) ([]*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(m.records))

	var out []*model.FileRecord
	for _, id := range page(ids, limit, offset) {
		rec := m.records[id]
		out = append(out, &rec)
	}
	return out, nil
}

func (m *FileRecords) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *FileRecords) Update(_ context.Context, rec *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.records[rec.ID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.UploadedAt = old.UploadedAt
	m.records[rec.ID] = *rec
	return nil
}

func (m *FileRecords) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// --- DataModels ---

// DataModels - DataModelRepository в памяти.
// fileExists проверяет связываемые файлы; связи с удалёнными файлами
// не возвращаются, как при ON DELETE CASCADE.
type DataModels struct {
	mu         sync.RWMutex
	nextID     int64
	models     map[int64]model.DataModel
	fileExists func(id int64) bool
}

var _ repository.DataModelRepository = (*DataModels)(nil)

// NewDataModels создаёт пустой репозиторий моделей данных.
func NewDataModels(fileExists func(id int64) bool) *DataModels {
	return &DataModels{models: make(map[int64]model.DataModel), fileExists: fileExists}
}

func (m *DataModels) checkFiles(ids []int64) ([]int64, error) {
	links := slices.Clone(ids)
	slices.Sort(links)
	links = slices.Compact(links)

	var missing []int64
	for _, id := range links {
		if !m.fileExists(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", repository.ErrLinkedFileNotFound, missing)
	}
	return links, nil
}

// view - копия модели без связей с удалёнными файлами.
func (m *DataModels) view(dm model.DataModel) *model.DataModel {
	dm.LinkedTables = slices.DeleteFunc(slices.Clone(dm.LinkedTables), func(id int64) bool {
		return !m.fileExists(id)
	})
	return &dm
}

func (m *DataModels) Create(_ context.Context, dm *model.DataModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	links, err := m.checkFiles(dm.LinkedTables)
	if err != nil {
		return err
	}
	m.nextID++
	dm.ID = m.nextID
	dm.LinkedTables = links
	m.models[dm.ID] = *dm
	return nil
}

func (m *DataModels) GetByID(_ context.Context, id int64) (*model.DataModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dm, ok := m.models[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.view(dm), nil
}

func (m *DataModels) filtered(ownerID *int64) []int64 {
	var ids []int64
	for id, dm := range m.models {
		if ownerID == nil || dm.OwnerID == *ownerID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (m *DataModels) List(_ context.Context, ownerID *int64, limit, offset int) ([]*model.DataModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.DataModel
	for _, id := range page(m.filtered(ownerID), limit, offset) {
		out = append(out, m.view(m.models[id]))
	}
	return out, nil
}

func (m *DataModels) Count(_ context.Context, ownerID *int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filtered(ownerID)), nil
}

func (m *DataModels) Update(_ context.Context, dm *model.DataModel, replaceLinks bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.models[dm.ID]
	if !ok {
		return repository.ErrNotFound
	}
	dm.OwnerID = old.OwnerID
	if replaceLinks {
		links, err := m.checkFiles(dm.LinkedTables)
		if err != nil {
			return err
		}
		dm.LinkedTables = links
	} else {
		dm.LinkedTables = old.LinkedTables
	}
	m.models[dm.ID] = *dm
	dm.LinkedTables = m.view(*dm).LinkedTables
	return nil
}

func (m *DataModels) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.models[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.models, id)
	return nil
}

// --- Users ---

// Users - UserRepository в памяти.
type Users struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]model.User
}

var _ repository.UserRepository = (*Users)(nil)

// NewUsers создаёт пустой репозиторий пользователей.
func NewUsers() *Users {
	return &Users{users: make(map[int64]model.User)}
}

func (m *Users) taken(username string, except int64) bool {
	for id, u := range m.users {
		if u.Username == username && id != except {
			return true
		}
	}
	return false
}

func (m *Users) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken(u.Username, 0) {
		return fmt.Errorf("%w: username %q уже занят", repository.ErrConflict, u.Username)
	}
	m.nextID++
	u.ID = m.nextID
	u.DateJoined = time.Now().UTC()
	u.Groups = []string{}
	m.users[u.ID] = *u
	return nil
}

func (m *Users) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Groups = slices.Clone(u.Groups)
	return &u, nil
}

func (m *Users) GetByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			u.Groups = slices.Clone(u.Groups)
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Users) UpdateProfile(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.taken(u.Username, u.ID) {
		return fmt.Errorf("%w: username %q уже занят", repository.ErrConflict, u.Username)
	}
	old.Username = u.Username
	old.Email = u.Email
	m.users[u.ID] = old
	return nil
}

func (m *Users) AddToGroup(_ context.Context, userID int64, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if !slices.Contains(u.Groups, group) {
		u.Groups = append(slices.Clone(u.Groups), group)
		slices.Sort(u.Groups)
	}
	m.users[userID] = u
	return nil
}

func (m *Users) RemoveFromGroup(_ context.Context, userID int64, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || !slices.Contains(u.Groups, group) {
		return repository.ErrNotFound
	}
	u.Groups = slices.DeleteFunc(slices.Clone(u.Groups), func(g string) bool { return g == group })
	m.users[userID] = u
	return nil
}
