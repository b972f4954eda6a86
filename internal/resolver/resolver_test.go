package resolver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/exam-portal/question-import-service/internal/models"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindByID(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, id uint) (*uint, error) {
	args := m.Called(ctx, tx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint), args.Error(1)
}

func (m *MockStore) FindByLabel(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, label string) (*uint, error) {
	args := m.Called(ctx, tx, kind, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint), args.Error(1)
}

func (m *MockStore) Create(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, name string) (uint, error) {
	args := m.Called(ctx, tx, kind, name)
	return args.Get(0).(uint), args.Error(1)
}

// memoryCache is a minimal in-memory CacheService for resolver tests.
type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := c.entries[key]
	if !ok {
		return assert.AnError
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolver_BlankLabelsResolveToNil(t *testing.T) {
	store := new(MockStore)
	r := New(store, nil, testLogger())
	ctx := context.Background()

	for _, label := range []string{"", "   ", "nan", "NaN"} {
		id, err := r.Resolve(ctx, nil, models.RefTrade, label, true)
		require.NoError(t, err)
		assert.Nil(t, id, "label %q should resolve to nil", label)
	}

	store.AssertNotCalled(t, "FindByLabel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_NumericLabelTriedAsPrimaryKey(t *testing.T) {
	store := new(MockStore)
	r := New(store, nil, testLogger())
	ctx := context.Background()

	found := uint(42)
	store.On("FindByID", mock.Anything, mock.Anything, models.RefLevel, uint(42)).Return(&found, nil)

	id, err := r.Resolve(ctx, nil, models.RefLevel, "42", false)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, uint(42), *id)

	store.AssertNotCalled(t, "FindByLabel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_NumericLabelFallsBackToLabelLookup(t *testing.T) {
	store := new(MockStore)
	r := New(store, nil, testLogger())
	ctx := context.Background()

	// A numeric label with no matching row is still tried as a name;
	// a trade really can be called "110".
	found := uint(9)
	store.On("FindByID", mock.Anything, mock.Anything, models.RefTrade, uint(110)).Return(nil, nil)
	store.On("FindByLabel", mock.Anything, mock.Anything, models.RefTrade, "110").Return(&found, nil)

	id, err := r.Resolve(ctx, nil, models.RefTrade, "110", false)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, uint(9), *id)
}

func TestResolver_CreatesMissingWhenPermitted(t *testing.T) {
	store := new(MockStore)
	r := New(store, nil, testLogger())
	ctx := context.Background()

	store.On("FindByLabel", mock.Anything, mock.Anything, models.RefSkill, "Welding").Return(nil, nil)
	store.On("Create", mock.Anything, mock.Anything, models.RefSkill, "Welding").Return(uint(5), nil)

	id, err := r.Resolve(ctx, nil, models.RefSkill, "Welding", true)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, uint(5), *id)
}

func TestResolver_UnresolvableWithoutCreateIsNotAnError(t *testing.T) {
	store := new(MockStore)
	r := New(store, nil, testLogger())
	ctx := context.Background()

	store.On("FindByLabel", mock.Anything, mock.Anything, models.RefCategory, "Ghost").Return(nil, nil)

	id, err := r.Resolve(ctx, nil, models.RefCategory, "Ghost", false)
	require.NoError(t, err)
	assert.Nil(t, id)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_CachesCommittedResolutions(t *testing.T) {
	store := new(MockStore)
	memory := newMemoryCache()
	r := New(store, memory, testLogger())
	ctx := context.Background()

	found := uint(3)
	store.On("FindByLabel", mock.Anything, mock.Anything, models.RefTrade, "Fitter").Return(&found, nil).Once()

	id, err := r.Resolve(ctx, nil, models.RefTrade, "Fitter", false)
	require.NoError(t, err)
	require.NotNil(t, id)

	// Second resolution is served from the cache, including a case variant.
	id, err = r.Resolve(ctx, nil, models.RefTrade, "FITTER", false)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, uint(3), *id)

	store.AssertNumberOfCalls(t, "FindByLabel", 1)
}

func TestResolver_DoesNotCacheInsideTransactions(t *testing.T) {
	store := new(MockStore)
	memory := newMemoryCache()
	r := New(store, memory, testLogger())
	ctx := context.Background()
	tx := &gorm.DB{Config: &gorm.Config{}}

	found := uint(3)
	store.On("FindByLabel", mock.Anything, mock.Anything, models.RefTrade, "Fitter").Return(&found, nil)

	_, err := r.Resolve(ctx, tx, models.RefTrade, "Fitter", false)
	require.NoError(t, err)

	// Rows observed under an open transaction must not poison the cache.
	assert.Empty(t, memory.entries)
}

func TestResolver_DoesNotCacheCreatedRows(t *testing.T) {
	store := new(MockStore)
	memory := newMemoryCache()
	r := New(store, memory, testLogger())
	ctx := context.Background()

	store.On("FindByLabel", mock.Anything, mock.Anything, models.RefQF, "NSQF-4").Return(nil, nil)
	store.On("Create", mock.Anything, mock.Anything, models.RefQF, "NSQF-4").Return(uint(11), nil)

	id, err := r.Resolve(ctx, nil, models.RefQF, "NSQF-4", true)
	require.NoError(t, err)
	require.NotNil(t, id)

	assert.Empty(t, memory.entries)
}
