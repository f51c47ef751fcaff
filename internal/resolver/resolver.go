// Package resolver implements the prompt resolution engine: it turns a
// stored prompt version into a flattened document by recursively following
// in-body references, detecting cycles, and substituting resolved content,
// with a version-keyed cache in front of the recursion.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/store"
)

const (
	defaultMaxDepth    = 25
	defaultParallelism = 8
)

type Options struct {
	Cache       Cache // nil disables caching; every call recomputes
	Metrics     Sink  // nil defaults to NopSink
	CacheTTL    time.Duration
	MaxDepth    int
	Parallelism int
	// Strict fails a version on a missing reference instead of substituting
	// a placeholder.
	Strict bool
}

type Resolver struct {
	store       store.Store
	labels      *LabelIndex
	cache       Cache
	metrics     Sink
	ttl         time.Duration
	maxDepth    int
	parallelism int
	strict      bool
}

func New(st store.Store, opts Options) *Resolver {
	if opts.Metrics == nil {
		opts.Metrics = NopSink{}
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	return &Resolver{
		store:       st,
		labels:      NewLabelIndex(st),
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		ttl:         opts.CacheTTL,
		maxDepth:    opts.MaxDepth,
		parallelism: opts.Parallelism,
		strict:      opts.Strict,
	}
}

// VersionResult is one entry of a batch resolution. Either Document or Err
// is set; a failed version never poisons its siblings.
type VersionResult struct {
	Version  int               `json:"version"`
	IsActive bool              `json:"is_active"`
	Document *ResolvedDocument `json:"document,omitempty"`
	Err      error             `json:"-"`
}

// ResolveAllVersions resolves every version of a prompt name, newest first.
// Versions resolve in parallel, each with its own resolution context; the
// cache is the only state they share. Returns store.ErrNotFound when the
// name has no versions at all.
func (r *Resolver) ResolveAllVersions(ctx context.Context, projectID uuid.UUID, name string) ([]VersionResult, error) {
	rows, err := r.store.FetchVersions(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	results := make([]VersionResult, len(rows))
	g := new(errgroup.Group)
	g.SetLimit(r.parallelism)
	for i, row := range rows {
		g.Go(func() error {
			doc, err := r.resolve(ctx, row, NewResolutionContext(r.maxDepth))
			results[i] = VersionResult{
				Version:  row.Version,
				IsActive: row.IsActive(),
				Document: doc,
				Err:      err,
			}
			return nil
		})
	}
	_ = g.Wait() // per-version failures are carried in results, never returned here

	return results, nil
}

// Resolve flattens a single prompt version with a fresh resolution context.
func (r *Resolver) Resolve(ctx context.Context, root models.PromptVersion) (*ResolvedDocument, error) {
	return r.resolve(ctx, root, NewResolutionContext(r.maxDepth))
}

func (r *Resolver) resolve(ctx context.Context, row models.PromptVersion, rc *ResolutionContext) (*ResolvedDocument, error) {
	r.metrics.ResolutionAttempted()

	key := DocumentKey{ProjectID: row.ProjectID, Name: row.Name, Version: row.Version}
	if doc := r.cacheGet(ctx, key); doc != nil {
		// Cached documents are fully flattened; no recursion needed.
		r.metrics.CacheHit()
		return doc, nil
	}
	r.metrics.CacheMiss()

	if err := rc.push(chainKey{Name: row.Name, Version: row.Version}); err != nil {
		var cyc *CyclicReferenceError
		if errors.As(err, &cyc) {
			r.metrics.CycleDetected()
		}
		return nil, err
	}
	defer rc.pop()

	var (
		b       strings.Builder
		partial bool
		missing []string
		last    int
	)
	for _, ref := range ParseRefs(row.Body) {
		b.WriteString(row.Body[last:ref.Start])
		last = ref.End

		if ref.Escaped {
			// Drop the backslash, keep the literal reference text.
			b.WriteString(row.Body[ref.Start+1 : ref.End])
			continue
		}

		child, err := r.resolveRef(ctx, row.ProjectID, ref, rc)
		switch {
		case err == nil:
			r.metrics.ReferenceResolved()
			b.WriteString(child.Body)
			if child.Partial {
				partial = true
				missing = append(missing, child.Missing...)
			}
		case isMissing(err):
			r.metrics.ReferenceMissing()
			if r.strict {
				return nil, &MissingReferenceError{Name: ref.Name, Selector: ref.Selector()}
			}
			b.WriteString(ref.Placeholder())
			partial = true
			missing = append(missing, ref.Name+"@"+ref.Selector())
		default:
			// Cycles, depth overruns and store failures are fatal to this
			// version.
			return nil, err
		}
	}
	b.WriteString(row.Body[last:])

	doc := &ResolvedDocument{
		ProjectID:  row.ProjectID,
		Name:       row.Name,
		Version:    row.Version,
		Body:       b.String(),
		Labels:     row.Labels,
		IsActive:   row.IsActive(),
		Partial:    partial,
		Missing:    missing,
		ResolvedAt: time.Now().UTC(),
	}
	r.cachePut(ctx, key, doc)
	return doc, nil
}

// errRefMissing marks recoverable lookup failures inside resolveRef so the
// caller can tell them apart from fatal ones.
var errRefMissing = errors.New("reference target missing")

func isMissing(err error) bool {
	return errors.Is(err, errRefMissing)
}

func (r *Resolver) resolveRef(ctx context.Context, projectID uuid.UUID, ref Reference, rc *ResolutionContext) (*ResolvedDocument, error) {
	if ref.Err != nil {
		// A single malformed reference degrades like a missing one.
		slog.Debug("skipping malformed reference", "error", ref.Err)
		return nil, errRefMissing
	}

	version := ref.Version
	if version == 0 {
		v, err := r.labels.Resolve(ctx, projectID, ref.Name, ref.Label)
		if errors.Is(err, store.ErrNotFound) {
			return nil, errRefMissing
		}
		if err != nil {
			return nil, err
		}
		version = v
	}

	target, err := r.store.FetchByVersion(ctx, projectID, ref.Name, version)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errRefMissing
	}
	if err != nil {
		return nil, err
	}

	return r.resolve(ctx, *target, rc)
}

func (r *Resolver) cacheGet(ctx context.Context, key DocumentKey) *ResolvedDocument {
	if r.cache == nil {
		return nil
	}
	doc, err := r.cache.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to recomputation, never to a failed
		// resolution.
		slog.Warn("resolution cache read failed", "key", key.String(), "error", err)
		return nil
	}
	return doc
}

func (r *Resolver) cachePut(ctx context.Context, key DocumentKey, doc *ResolvedDocument) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, key, doc, r.ttl); err != nil {
		slog.Warn("resolution cache write failed", "key", key.String(), "error", err)
	}
}
