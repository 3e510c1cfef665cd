package flatskip

// Test hooks. They must not block or mutate the index.
var (
	// fetchHook is invoked for every record a search reads.
	fetchHook func(phase searchPhase, pos uint32)
)
