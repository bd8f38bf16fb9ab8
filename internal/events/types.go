// Package events provides an in-process event bus for domain notifications.
package events

// EventType identifies a kind of event
type EventType string

const (
	// IndicesRefreshed is emitted after each index board refresh
	IndicesRefreshed EventType = "INDICES_REFRESHED"
	// DecisionCreated is emitted when a user records a decision
	DecisionCreated EventType = "DECISION_CREATED"
	// PortfolioCreated is emitted when a user creates a portfolio
	PortfolioCreated EventType = "PORTFOLIO_CREATED"
	// CommentaryGenerated is emitted when commentary is served
	CommentaryGenerated EventType = "COMMENTARY_GENERATED"
	// CacheCleared is emitted when response cache entries are cleared
	CacheCleared EventType = "CACHE_CLEARED"
	// ErrorOccurred is emitted for errors worth surfacing to subscribers
	ErrorOccurred EventType = "ERROR_OCCURRED"
)
