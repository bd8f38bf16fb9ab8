package clientdata

import "time"

// TTL constants for cached generation responses.
// These are stored with each entry; freshness is now - timestamp < ttl.
const (
	// DefaultTTL applies when a caller does not pick a window
	DefaultTTL = 24 * time.Hour

	TTLMarketCommentary = 24 * time.Hour // 1 day - market overview is written once per session day
	TTLStockCommentary  = 24 * time.Hour // 1 day - per-symbol commentary
	TTLCoaching         = 6 * time.Hour  // 6 hours - decision coaching follows new decisions more closely
)

// DefaultNamespace prefixes every durable key. Kept stable so entries written
// by earlier clients stay readable.
const DefaultNamespace = "openai_cache_"
