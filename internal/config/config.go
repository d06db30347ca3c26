// Package config carries the tunable limits of the core engine. These
// are observable and tunable only by recompilation — there is no
// hot-reload path; a Config is fixed for the lifetime of the engine
// instance that was built with it.
package config

import "time"

// Config is the root configuration struct, grounded on docdb's
// struct-of-structs layout (docdb/internal/config.Config).
type Config struct {
	ResultPool ResultPoolConfig
	Context    ContextConfig
	FullText   FullTextConfig
	Query      QueryConfig
}

// ResultPoolConfig carries the limits of the bounded result pool.
type ResultPoolConfig struct {
	// PoolSize is kQueryResultsPoolSize: target capacity of the bounded
	// pool of reusable result builders.
	PoolSize int
	// MaxConcurrentQueries is kMaxConcurentQueries: hard cap on concurrent
	// live result handles.
	MaxConcurrentQueries int
	// MaxPooledResultsCap is kMaxPooledResultsCap in bytes: a released
	// builder whose buffer exceeds this is dropped rather than recycled.
	MaxPooledResultsCap int
	// WarnLargeResultsLimit is kWarnLargeResultsLimit in bytes: a single
	// result whose capacity reaches this logs a warning (never fails).
	WarnLargeResultsLimit int64
}

// ContextConfig carries the cancellation-table limit.
type ContextConfig struct {
	// ArrSize is kCtxArrSize: fixed-size table of active cancellation
	// contexts.
	ArrSize int
}

// FullTextConfig carries full-text build tuning.
type FullTextConfig struct {
	// MaxTypos is the default maximum edit distance considered when
	// generating typo variants.
	MaxTypos int
	// MaxTyposInWordOverride allows a per-field override of the word-level
	// typo bound beyond the module-wide MaxTypos default.
	MaxTyposInWordOverride map[string]int
	// MaxAreasInDoc bounds per-document area reporting.
	MaxAreasInDoc int
	// MaxMergeLimit is kMaxMergeLimitValue: merge offsets fit a uint16.
	MaxMergeLimit int
	// BuildWorkers is a worker-count setting for full-text work. The
	// fulltext package does not read it: fulltext Select sizes its ants
	// pool from SelectOptions.BuildWorkers.
	BuildWorkers int
}

// QueryConfig bounds query execution shape, independent of the (external)
// execution engine.
type QueryConfig struct {
	// FetchAmount is the default per-request batch size for lazy result
	// fetch.
	FetchAmount int
	// FetchTimeout bounds a single fetch round-trip.
	FetchTimeout time.Duration
}

// Default returns the engine's documented defaults.
func Default() *Config {
	return &Config{
		ResultPool: ResultPoolConfig{
			PoolSize:              1024,
			MaxConcurrentQueries:  65534,
			MaxPooledResultsCap:   64 * 1024,
			WarnLargeResultsLimit: 1 << 30,
		},
		Context: ContextConfig{
			ArrSize: 1024,
		},
		FullText: FullTextConfig{
			MaxTypos:               2,
			MaxTyposInWordOverride: map[string]int{},
			MaxAreasInDoc:          5,
			MaxMergeLimit:          1<<16 - 1,
			BuildWorkers:           4,
		},
		Query: QueryConfig{
			FetchAmount:  1000,
			FetchTimeout: 30 * time.Second,
		},
	}
}
