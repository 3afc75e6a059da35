package settings

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	mu      sync.Mutex
	records map[string]map[string]any
	gets    int
	err     error
}

func (s *countingStore) Get(_ context.Context, key string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.err != nil {
		return nil, false, s.err
	}
	r, ok := s.records[key]
	return r, ok, nil
}

func (s *countingStore) Set(_ context.Context, key string, value map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.records == nil {
		s.records = map[string]map[string]any{}
	}
	s.records[key] = value
	return nil
}

func newTestLoader(store Store, ttl time.Duration) *Loader {
	logger := zerolog.New(io.Discard)
	return NewLoader(LoaderConfig{Store: store, TTL: ttl, Logger: &logger})
}

func TestLoadMissingRecordIsDefaults(t *testing.T) {
	l := newTestLoader(&countingStore{}, 0)
	s, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Defaults(), s)
}

func TestLoadStoreError(t *testing.T) {
	boom := errors.New("boom")
	l := newTestLoader(&countingStore{err: boom}, 0)
	_, err := l.Load(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestLoadIsCachedForTTL(t *testing.T) {
	store := &countingStore{}
	l := newTestLoader(store, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := l.Load(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 1, store.gets)
}

func TestLoadWithoutTTLReadsEveryTime(t *testing.T) {
	store := &countingStore{}
	l := newTestLoader(store, 0)

	for i := 0; i < 3; i++ {
		_, err := l.Load(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.gets)
}

func TestUpdateBadMaxAgeKeepsEffectiveValue(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	l := newTestLoader(store, time.Minute)

	s, err := l.Update(ctx, map[string]any{
		KeyEmitETag:         "1",
		KeyWeakETag:         "1",
		KeyEmitLastModified: "1",
		KeyEmitExpires:      "1",
		KeyEmitCacheControl: "1",
		KeyMaxAgeDefault:    "600",
	})
	require.NoError(t, err)
	require.Equal(t, 600, s.MaxAgeDefault)

	s, err = l.Update(ctx, map[string]any{
		KeyEmitETag:      "1",
		KeyMaxAgeDefault: "-5",
	})
	require.NoError(t, err)
	require.Equal(t, 600, s.MaxAgeDefault, "not reset to the 86400 default")
	require.True(t, s.EmitETag)
	require.False(t, s.EmitExpires)

	// the persisted record matches what was returned
	require.Equal(t, s, FromStored(store.records[OptionName]))
	loaded, err := l.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, s, loaded)
}

func TestUpdateEmptySubmissionIsIgnored(t *testing.T) {
	store := &countingStore{}
	l := newTestLoader(store, 0)

	s, err := l.Update(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, Defaults(), s)
	require.Empty(t, store.records)
}

func TestUpdateVisibleToOtherLoaders(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, Network)
	admin := newTestLoader(store, 0)
	reader := newTestLoader(store, 0)

	_, err := admin.Update(ctx, map[string]any{KeyEmitCacheControl: 1, KeyMaxAgeSearch: 30})
	require.NoError(t, err)

	s, err := reader.Load(ctx)
	require.NoError(t, err)
	require.True(t, s.EmitCacheControl)
	require.False(t, s.EmitETag)
	require.Equal(t, 30, s.MaxAgeSearch)
	require.Equal(t, 86400, s.MaxAgeDefault)
}

func TestEnsureVersion(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	l := newTestLoader(store, 0)

	require.NoError(t, l.EnsureVersion(ctx))
	require.Equal(t, map[string]any{"version": Version}, store.records[VersionOptionName])

	store.records[VersionOptionName] = map[string]any{"version": "0.9"}
	require.NoError(t, l.EnsureVersion(ctx))
	require.Equal(t, Version, store.records[VersionOptionName]["version"])
}

type blockingStore struct {
	countingStore
	release chan struct{}
}

func (s *blockingStore) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	<-s.release
	return s.countingStore.Get(ctx, key)
}

func TestConcurrentLoadsShareOneRead(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	l := newTestLoader(store, 0)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := l.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, Defaults(), s)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(store.release)
	wg.Wait()

	require.Equal(t, 1, store.gets)
}

type cancellableStore struct {
	countingStore
	started chan struct{}
	release chan struct{}
}

func (s *cancellableStore) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	s.started <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	return s.countingStore.Get(ctx, key)
}

func TestCancelledLoadDoesNotFailJoinedLoads(t *testing.T) {
	store := &cancellableStore{started: make(chan struct{}, 1), release: make(chan struct{})}
	l := newTestLoader(store, 0)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx)
		first <- err
	}()
	<-store.started

	second := make(chan error, 1)
	go func() {
		s, err := l.Load(context.Background())
		assert.Equal(t, Defaults(), s)
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)
	close(store.release)
	require.NoError(t, <-second)
}

type slowReadStore struct {
	countingStore
	started chan struct{}
	release chan struct{}
}

// Get reads the record, then holds it until released.
func (s *slowReadStore) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	r, ok, err := s.countingStore.Get(ctx, key)
	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
	}
	return r, ok, err
}

func TestReadFinishingAfterUpdateIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &slowReadStore{}
	l := newTestLoader(store, time.Hour)
	_, err := l.Load(ctx)
	require.NoError(t, err)

	store.started = make(chan struct{})
	store.release = make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.read(ctx)
	}()
	<-store.started

	updated, err := l.Update(ctx, map[string]any{KeyEmitETag: 1, KeyMaxAgeDefault: 60})
	require.NoError(t, err)
	close(store.release)
	<-done

	s, err := l.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, updated, s)
	require.Equal(t, 60, s.MaxAgeDefault)
}
