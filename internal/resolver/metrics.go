package resolver

// Sink receives fire-and-forget resolution counters. Implementations must
// never block the resolution path; recording failures are swallowed.
type Sink interface {
	ResolutionAttempted()
	CacheHit()
	CacheMiss()
	ReferenceResolved()
	ReferenceMissing()
	CycleDetected()
}

type NopSink struct{}

func (NopSink) ResolutionAttempted() {}
func (NopSink) CacheHit()            {}
func (NopSink) CacheMiss()           {}
func (NopSink) ReferenceResolved()   {}
func (NopSink) ReferenceMissing()    {}
func (NopSink) CycleDetected()       {}
