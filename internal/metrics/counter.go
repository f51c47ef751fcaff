package metrics

import "sync/atomic"

// CounterSink tallies counters in-process with atomics. Used in tests and as
// the fallback when Redis is unavailable.
type CounterSink struct {
	resolutionAttempted atomic.Int64
	cacheHit            atomic.Int64
	cacheMiss           atomic.Int64
	referenceResolved   atomic.Int64
	referenceMissing    atomic.Int64
	cycleDetected       atomic.Int64
}

func NewCounterSink() *CounterSink { return &CounterSink{} }

func (s *CounterSink) ResolutionAttempted() { s.resolutionAttempted.Add(1) }
func (s *CounterSink) CacheHit()            { s.cacheHit.Add(1) }
func (s *CounterSink) CacheMiss()           { s.cacheMiss.Add(1) }
func (s *CounterSink) ReferenceResolved()   { s.referenceResolved.Add(1) }
func (s *CounterSink) ReferenceMissing()    { s.referenceMissing.Add(1) }
func (s *CounterSink) CycleDetected()       { s.cycleDetected.Add(1) }

func (s *CounterSink) Snapshot() map[string]int64 {
	return map[string]int64{
		CounterResolutionAttempted: s.resolutionAttempted.Load(),
		CounterCacheHit:            s.cacheHit.Load(),
		CounterCacheMiss:           s.cacheMiss.Load(),
		CounterReferenceResolved:   s.referenceResolved.Load(),
		CounterReferenceMissing:    s.referenceMissing.Load(),
		CounterCycleDetected:       s.cycleDetected.Load(),
	}
}
