package vector_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/internal/vector"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) AddDocuments(ctx context.Context, records []vector.Record) error {
	return m.Called(ctx, records).Error(0)
}

func (m *MockStore) Search(ctx context.Context, vec []float32, k int) ([]vector.Match, error) {
	args := m.Called(ctx, vec, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vector.Match), args.Error(1)
}

func (m *MockStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Ready(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func TestProvider_InitialisesOnce(t *testing.T) {
	var calls int32
	store := new(MockStore)
	p := vector.NewProvider(func(ctx context.Context) (vector.Store, error) {
		atomic.AddInt32(&calls, 1)
		return store, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Get(context.Background())
			assert.NoError(t, err)
			assert.Same(t, store, s)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, p.Initialised())
}

func TestProvider_RetriesAfterFailure(t *testing.T) {
	store := new(MockStore)
	attempts := 0
	p := vector.NewProvider(func(ctx context.Context) (vector.Store, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return store, nil
	})

	_, err := p.Get(context.Background())
	assert.ErrorIs(t, err, vector.ErrUnavailable)
	assert.False(t, p.Initialised())

	s, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, store, s)
	assert.Equal(t, 2, attempts)
}

func TestIndex_Add(t *testing.T) {
	store := new(MockStore)
	emb := new(MockEmbedder)
	ix := vector.NewIndex(vector.NewProvider(func(context.Context) (vector.Store, error) { return store, nil }), emb)

	recs := []vector.Record{{Content: "a"}, {Content: "b"}}
	emb.On("EmbedBatch", mock.Anything, []string{"a", "b"}).Return([][]float32{{1, 0}, {0, 1}}, nil)
	store.On("AddDocuments", mock.Anything, mock.MatchedBy(func(rs []vector.Record) bool {
		return len(rs) == 2 && rs[0].Vector[0] == 1 && rs[1].Vector[1] == 1
	})).Return(nil)

	require.NoError(t, ix.Add(context.Background(), recs))
	store.AssertExpectations(t)
	emb.AssertExpectations(t)
}

func TestIndex_Add_Empty(t *testing.T) {
	ix := vector.NewIndex(vector.NewProvider(func(context.Context) (vector.Store, error) {
		t.Fatal("store must not be initialised for an empty batch")
		return nil, nil
	}), new(MockEmbedder))

	assert.NoError(t, ix.Add(context.Background(), nil))
}

func TestIndex_Add_UnavailableSkipsEmbedding(t *testing.T) {
	emb := new(MockEmbedder)
	ix := vector.NewIndex(vector.NewProvider(func(context.Context) (vector.Store, error) {
		return nil, errors.New("no route to host")
	}), emb)

	err := ix.Add(context.Background(), []vector.Record{{Content: "a"}})
	assert.ErrorIs(t, err, vector.ErrUnavailable)
	emb.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
}

func TestIndex_Search(t *testing.T) {
	store := new(MockStore)
	emb := new(MockEmbedder)
	ix := vector.NewIndex(vector.NewProvider(func(context.Context) (vector.Store, error) { return store, nil }), emb)

	emb.On("Embed", mock.Anything, "what is go?").Return([]float32{0.5, 0.5}, nil)
	store.On("Search", mock.Anything, []float32{0.5, 0.5}, 5).Return([]vector.Match{{Content: "go is a language", Score: 0.9}}, nil)

	matches, err := ix.Search(context.Background(), "what is go?", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "go is a language", matches[0].Content)
}

func TestIndex_Count(t *testing.T) {
	store := new(MockStore)
	ix := vector.NewIndex(vector.NewProvider(func(context.Context) (vector.Store, error) { return store, nil }), new(MockEmbedder))

	store.On("Count", mock.Anything).Return(42, nil)
	n, err := ix.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
