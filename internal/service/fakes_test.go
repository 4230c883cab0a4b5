package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/stretchr/testify/mock"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/errs"
)

// bagOfWordsBackend embeds text as term counts over a fixed vocabulary.
// Every distinct word gets its own dimension, so similarity is exact and
// reproducible without a model.
type bagOfWordsBackend struct {
	index map[string]int
	calls atomic.Int32
}

func newBagOfWordsBackend(texts ...string) *bagOfWordsBackend {
	b := &bagOfWordsBackend{index: map[string]int{}}
	for _, s := range DefaultSeeds {
		b.addWords(s.Phrase)
	}
	for _, t := range texts {
		b.addWords(t)
	}
	return b
}

func (b *bagOfWordsBackend) addWords(text string) {
	for _, w := range tokenize(text) {
		if _, ok := b.index[w]; !ok {
			b.index[w] = len(b.index)
		}
	}
}

func (b *bagOfWordsBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	b.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(b.index))
		for _, w := range tokenize(t) {
			if idx, ok := b.index[w]; ok {
				v[idx]++
			}
		}
		out[i] = v
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func newTestEmbedder(texts ...string) (*EmbeddingService, *bagOfWordsBackend) {
	backend := newBagOfWordsBackend(texts...)
	return NewEmbeddingService(backend, EmbeddingServiceConfig{ModelVersion: "test:bow"}), backend
}

// flakyBackend fails until healthy is set, then delegates.
type flakyBackend struct {
	mu      sync.Mutex
	healthy bool
	next    EmbeddingBackend
	calls   int
}

func (f *flakyBackend) setHealthy(v bool) {
	f.mu.Lock()
	f.healthy = v
	f.mu.Unlock()
}

func (f *flakyBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakyBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	healthy := f.healthy
	f.mu.Unlock()
	if !healthy {
		return nil, errors.New("connection refused")
	}
	return f.next.EmbedBatch(ctx, texts)
}

type mockSeedStore struct {
	mock.Mock
}

func (m *mockSeedStore) Load(ctx context.Context, model string, seeds []domain.CategorySeed) (map[string][]float32, bool, error) {
	args := m.Called(ctx, model, seeds)
	vectors, _ := args.Get(0).(map[string][]float32)
	return vectors, args.Bool(1), args.Error(2)
}

func (m *mockSeedStore) Save(ctx context.Context, model string, seeds []domain.CategorySeed, vectors map[string][]float32) error {
	args := m.Called(ctx, model, seeds, vectors)
	return args.Error(0)
}

// memComplaintStore is an in-memory ComplaintStore. failIDs and panicIDs make
// UpdateStatus misbehave for specific complaints.
type memComplaintStore struct {
	mu         sync.Mutex
	complaints map[string]*domain.Complaint
	order      []string
	nextID     int
	failIDs    map[string]error
	panicIDs   map[string]bool
	updates    int
}

func newMemComplaintStore() *memComplaintStore {
	return &memComplaintStore{
		complaints: map[string]*domain.Complaint{},
		failIDs:    map[string]error{},
		panicIDs:   map[string]bool{},
	}
}

func cloneComplaint(c *domain.Complaint) *domain.Complaint {
	out := *c
	out.Timeline = append([]domain.TimelineEntry(nil), c.Timeline...)
	out.Attachments = append([]domain.Attachment(nil), c.Attachments...)
	return &out
}

func (m *memComplaintStore) Create(_ context.Context, c *domain.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		m.nextID++
		c.ID = fmt.Sprintf("c-%d", m.nextID)
	}
	for i := range c.Timeline {
		c.Timeline[i].ComplaintID = c.ID
	}
	m.complaints[c.ID] = cloneComplaint(c)
	m.order = append(m.order, c.ID)
	return nil
}

func (m *memComplaintStore) GetByID(_ context.Context, id string) (*domain.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.complaints[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "Complaint not found")
	}
	return cloneComplaint(c), nil
}

func (m *memComplaintStore) List(_ context.Context) ([]domain.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Complaint, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *cloneComplaint(m.complaints[id]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityScore > out[j].PriorityScore })
	return out, nil
}

func (m *memComplaintStore) ListByOwner(_ context.Context, ownerID string) ([]domain.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Complaint{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if c := m.complaints[m.order[i]]; c.OwnerID == ownerID {
			out = append(out, *cloneComplaint(c))
		}
	}
	return out, nil
}

func (m *memComplaintStore) UpdateStatus(_ context.Context, id string, status domain.Status, entry *domain.TimelineEntry, from []domain.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicIDs[id] {
		panic("storage exploded")
	}
	if err := m.failIDs[id]; err != nil {
		return false, err
	}
	c, ok := m.complaints[id]
	if !ok {
		return false, errs.New(errs.KindNotFound, "Complaint not found")
	}
	if len(from) > 0 && !containsStatus(from, c.Status) {
		return false, nil
	}
	c.Status = status
	c.UpdatedAt = entry.CreatedAt
	entry.ComplaintID = id
	c.Timeline = append(c.Timeline, *entry)
	m.updates++
	return true, nil
}

func (m *memComplaintStore) ListStaleIDs(_ context.Context, statuses []domain.Status, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, id := range m.order {
		c := m.complaints[id]
		if containsStatus(statuses, c.Status) && c.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memComplaintStore) put(c *domain.Complaint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.complaints[c.ID] = cloneComplaint(c)
	m.order = append(m.order, c.ID)
}

func containsStatus(list []domain.Status, s domain.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memUserStore struct {
	mu     sync.Mutex
	byID   map[string]*domain.User
	nextID int
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byID: map[string]*domain.User{}}
}

func (m *memUserStore) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Phone == u.Phone {
			return errs.New(errs.KindConflict, "duplicate record")
		}
	}
	m.nextID++
	u.ID = fmt.Sprintf("u-%d", m.nextID)
	copied := *u
	m.byID[u.ID] = &copied
	return nil
}

func (m *memUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "User not found")
	}
	copied := *u
	return &copied, nil
}

func (m *memUserStore) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Phone == phone {
			copied := *u
			return &copied, nil
		}
	}
	return nil, errs.New(errs.KindNotFound, "User not found")
}

type mockLocker struct {
	mock.Mock
	released atomic.Int32
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	args := m.Called(ctx, key, ttl)
	if !args.Bool(0) {
		return nil, false, args.Error(1)
	}
	return func() { m.released.Add(1) }, true, args.Error(1)
}

// memObjectStorage is an in-memory storage.ObjectStorage.
type memObjectStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	uploadErr error
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: map[string][]byte{}}
}

func (m *memObjectStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.uploads++
	m.mu.Unlock()
	return nil
}

func (m *memObjectStorage) GetURL(key string) string {
	return "https://cdn.test/" + key
}

func (m *memObjectStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memObjectStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memObjectStorage) has(key string) bool {
	ok, _ := m.Exists(context.Background(), key)
	return ok
}
