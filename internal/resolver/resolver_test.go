package resolver_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptvault/promptvault/internal/cache"
	"github.com/promptvault/promptvault/internal/metrics"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/resolver"
	"github.com/promptvault/promptvault/internal/store"
)

// fakeStore serves versions from memory, honoring the store contract:
// newest first, ErrNotFound for absent rows, labels resolved against
// current state on every call.
type fakeStore struct {
	mu       sync.Mutex
	versions map[string][]models.PromptVersion
	fetches  atomic.Int64
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{versions: make(map[string][]models.PromptVersion)}
}

func (s *fakeStore) add(v models.PromptVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.Name] = append(s.versions[v.Name], v)
}

func (s *fakeStore) setLabels(name string, version int, labels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.versions[name] {
		if s.versions[name][i].Version == version {
			s.versions[name][i].Labels = labels
		}
	}
}

func (s *fakeStore) FetchVersions(_ context.Context, _ uuid.UUID, name string) ([]models.PromptVersion, error) {
	s.fetches.Add(1)
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := append([]models.PromptVersion(nil), s.versions[name]...)
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Version > rows[j].Version })
	return rows, nil
}

func (s *fakeStore) FetchByVersion(_ context.Context, _ uuid.UUID, name string, version int) (*models.PromptVersion, error) {
	s.fetches.Add(1)
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions[name] {
		if v.Version == version {
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) FetchByLabel(_ context.Context, _ uuid.UUID, name string, label string) (*models.PromptVersion, error) {
	s.fetches.Add(1)
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.PromptVersion
	for i := range s.versions[name] {
		v := s.versions[name][i]
		if v.HasLabel(label) && (best == nil || v.Version > best.Version) {
			best = &s.versions[name][i]
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

var projectID = uuid.MustParse("6b9f6a1e-58a8-4b2f-9e1c-16f6f38f1a11")

func pv(name string, version int, body string, labels ...string) models.PromptVersion {
	return models.PromptVersion{
		ID:        uuid.New(),
		PromptID:  uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Version:   version,
		Body:      body,
		Labels:    labels,
		CreatedAt: time.Now(),
	}
}

func newResolver(st store.Store, opts resolver.Options) *resolver.Resolver {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache()
	}
	return resolver.New(st, opts)
}

func TestResolveNoReferences(t *testing.T) {
	st := newFakeStore()
	root := pv("plain", 1, "just text, no refs", "production")
	st.add(root)

	r := newResolver(st, resolver.Options{})
	doc, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "just text, no refs", doc.Body)
	assert.True(t, doc.IsActive)
	assert.False(t, doc.Partial)

	inactive := pv("other", 1, "body", "staging")
	st.add(inactive)
	doc, err = r.Resolve(context.Background(), inactive)
	require.NoError(t, err)
	assert.False(t, doc.IsActive)
}

func TestResolveNestedByLabel(t *testing.T) {
	st := newFakeStore()
	st.add(pv("farewell", 2, "So long."))
	st.add(pv("farewell", 3, "Goodbye.", "production"))
	root := pv("greeting", 1, "Hello, {{ref:farewell@production}}", "production")
	st.add(root)

	r := newResolver(st, resolver.Options{})
	doc, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Goodbye.", doc.Body)
	assert.True(t, doc.IsActive)
	assert.Equal(t, []string{"production"}, doc.Labels)
}

func TestResolveExplicitVersion(t *testing.T) {
	st := newFakeStore()
	st.add(pv("base", 1, "one"))
	st.add(pv("base", 2, "two"))
	root := pv("top", 1, "[{{ref:base@1}}|{{ref:base@2}}]")
	st.add(root)

	r := newResolver(st, resolver.Options{})
	doc, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "[one|two]", doc.Body)
}

func TestResolveEscapedReference(t *testing.T) {
	st := newFakeStore()
	root := pv("doc", 1, `use \{{ref:sample}} to reference`)
	st.add(root)

	r := newResolver(st, resolver.Options{})
	doc, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "use {{ref:sample}} to reference", doc.Body)
	assert.False(t, doc.Partial)
}

func TestResolveSelfReferenceCycle(t *testing.T) {
	st := newFakeStore()
	root := pv("loop", 1, "before {{ref:loop@1}} after")
	st.add(root)

	r := newResolver(st, resolver.Options{})
	_, err := r.Resolve(context.Background(), root)

	var cyc *resolver.CyclicReferenceError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"loop@1", "loop@1"}, cyc.Chain)
}

func TestResolveTransitiveCycleNamesAllMembers(t *testing.T) {
	st := newFakeStore()
	st.add(pv("a", 1, "A {{ref:b@1}}"))
	st.add(pv("b", 1, "B {{ref:c@1}}"))
	st.add(pv("c", 1, "C {{ref:a@1}}"))

	r := newResolver(st, resolver.Options{})
	rows, err := st.FetchVersions(context.Background(), projectID, "a")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), rows[0])

	var cyc *resolver.CyclicReferenceError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a@1", "b@1", "c@1", "a@1"}, cyc.Chain)
	assert.Contains(t, err.Error(), "a@1 -> b@1 -> c@1 -> a@1")
}

func TestResolveMissingReferencePlaceholder(t *testing.T) {
	st := newFakeStore()
	root := pv("page", 1, "head {{ref:nowhere@production}} tail")
	st.add(root)

	sink := metrics.NewCounterSink()
	r := newResolver(st, resolver.Options{Metrics: sink})
	doc, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "head [unresolved: nowhere@production] tail", doc.Body)
	assert.True(t, doc.Partial)
	assert.Equal(t, []string{"nowhere@production"}, doc.Missing)
	assert.Equal(t, int64(1), sink.Snapshot()[metrics.CounterReferenceMissing])
}

func TestResolveMissingReferenceStrict(t *testing.T) {
	st := newFakeStore()
	root := pv("page", 1, "head {{ref:nowhere@production}} tail")
	st.add(root)

	r := newResolver(st, resolver.Options{Strict: true})
	_, err := r.Resolve(context.Background(), root)

	var missing *resolver.MissingReferenceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nowhere", missing.Name)
	assert.Equal(t, "production", missing.Selector)
}

func TestResolveMalformedReferenceDegrades(t *testing.T) {
	st := newFakeStore()
	root := pv("page", 1, "x {{ref:}} y")
	st.add(root)

	r := newResolver(st, resolver.Options{})
	doc, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "x [unresolved: ] y", doc.Body)
	assert.True(t, doc.Partial)
}

func TestResolveStoreFailurePropagates(t *testing.T) {
	st := newFakeStore()
	root := pv("page", 1, "x {{ref:dep@1}} y")
	st.add(root)
	st.add(pv("dep", 1, "dep body"))
	st.failWith = &store.UnavailableError{Op: "fetch by version", Err: errors.New("connection refused")}

	r := newResolver(st, resolver.Options{})
	_, err := r.Resolve(context.Background(), root)

	var unavailable *store.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestResolveCacheHitSkipsStore(t *testing.T) {
	st := newFakeStore()
	st.add(pv("leaf", 1, "leaf body", "production"))
	root := pv("page", 1, "see {{ref:leaf}}")
	st.add(root)

	mem := cache.NewMemoryCache()
	sink := metrics.NewCounterSink()
	r := newResolver(st, resolver.Options{Cache: mem, Metrics: sink})

	doc1, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	fetchesAfterFirst := st.fetches.Load()

	doc2, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, doc1.Body, doc2.Body)
	assert.Equal(t, doc1.ResolvedAt, doc2.ResolvedAt, "cached documents reuse the original resolution time")
	assert.Equal(t, fetchesAfterFirst, st.fetches.Load(), "a cache hit must not touch the store")
	assert.Equal(t, int64(1), sink.Snapshot()[metrics.CounterCacheHit])
}

func TestResolveLabelMoveNotMaskedByCache(t *testing.T) {
	st := newFakeStore()
	st.add(pv("child", 1, "old", "production"))
	st.add(pv("child", 2, "new"))
	root := pv("parent", 1, "value: {{ref:child@production}}")
	st.add(root)

	mem := cache.NewMemoryCache()
	r := newResolver(st, resolver.Options{Cache: mem})

	// Warm the cache for child v1 under the old label assignment.
	rows, err := st.FetchVersions(context.Background(), projectID, "child")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), rows[1])
	require.NoError(t, err)

	// Move the production label; the parent has never been resolved, so its
	// resolution must see the new holder despite child v1 being cached.
	st.setLabels("child", 1)
	st.setLabels("child", 2, "production")

	doc, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "value: new", doc.Body)
}

func TestResolveConcurrentSameVersion(t *testing.T) {
	st := newFakeStore()
	st.add(pv("leaf", 1, "L", "production"))
	root := pv("page", 7, "p {{ref:leaf}} q")
	st.add(root)

	mem := cache.NewMemoryCache()
	r := newResolver(st, resolver.Options{Cache: mem})

	var wg sync.WaitGroup
	docs := make([]*resolver.ResolvedDocument, 8)
	errs := make([]error, 8)
	for i := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs[i], errs[i] = r.Resolve(context.Background(), root)
		}()
	}
	wg.Wait()

	for i := range docs {
		require.NoError(t, errs[i])
		assert.Equal(t, "p L q", docs[i].Body)
		assert.Equal(t, docs[0].Version, docs[i].Version)
	}
	got, err := mem.Get(context.Background(), resolver.DocumentKey{ProjectID: projectID, Name: "page", Version: 7})
	require.NoError(t, err)
	require.NotNil(t, got, "the racing writers must converge on one cached value")
}

func TestResolveAllVersionsIsolatesFailures(t *testing.T) {
	st := newFakeStore()
	st.add(pv("multi", 1, "v1 body"))
	st.add(pv("multi", 2, "v2 body"))
	st.add(pv("multi", 3, "cycle {{ref:multi@3}}"))
	st.add(pv("multi", 4, "v4 body"))
	st.add(pv("multi", 5, "v5 body", "production"))

	sink := metrics.NewCounterSink()
	r := newResolver(st, resolver.Options{Metrics: sink})
	results, err := r.ResolveAllVersions(context.Background(), projectID, "multi")
	require.NoError(t, err)
	require.Len(t, results, 5)

	// Newest first.
	assert.Equal(t, []int{5, 4, 3, 2, 1}, []int{
		results[0].Version, results[1].Version, results[2].Version,
		results[3].Version, results[4].Version,
	})

	var failed, ok int
	for _, res := range results {
		if res.Err != nil {
			failed++
			assert.Equal(t, 3, res.Version)
			var cyc *resolver.CyclicReferenceError
			assert.ErrorAs(t, res.Err, &cyc)
		} else {
			ok++
			require.NotNil(t, res.Document)
		}
	}
	assert.Equal(t, 4, ok)
	assert.Equal(t, 1, failed)
	assert.True(t, results[0].IsActive)
	assert.False(t, results[1].IsActive)
	assert.Equal(t, int64(1), sink.Snapshot()[metrics.CounterCycleDetected])
}

func TestResolveAllVersionsUnknownName(t *testing.T) {
	st := newFakeStore()
	r := newResolver(st, resolver.Options{})
	_, err := r.ResolveAllVersions(context.Background(), projectID, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveDepthBound(t *testing.T) {
	st := newFakeStore()
	st.add(pv("d1", 1, "{{ref:d2@1}}"))
	st.add(pv("d2", 1, "{{ref:d3@1}}"))
	st.add(pv("d3", 1, "{{ref:d4@1}}"))
	st.add(pv("d4", 1, "bottom"))

	rows, err := st.FetchVersions(context.Background(), projectID, "d1")
	if err != nil {
		t.Fatal(err)
	}

	r := newResolver(st, resolver.Options{MaxDepth: 2})
	_, err = r.Resolve(context.Background(), rows[0])
	assert.ErrorIs(t, err, resolver.ErrDepthExceeded)

	r = newResolver(st, resolver.Options{MaxDepth: 10})
	doc, err := r.Resolve(context.Background(), rows[0])
	require.NoError(t, err)
	assert.Equal(t, "bottom", doc.Body)
}

func TestResolvePartialPropagatesFromChild(t *testing.T) {
	st := newFakeStore()
	st.add(pv("mid", 1, "mid {{ref:gone@production}}"))
	root := pv("top", 1, "top {{ref:mid@1}}")
	st.add(root)

	r := newResolver(st, resolver.Options{})
	doc, err := r.Resolve(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "top mid [unresolved: gone@production]", doc.Body)
	assert.True(t, doc.Partial)
	assert.Equal(t, []string{"gone@production"}, doc.Missing)
}
