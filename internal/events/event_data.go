package events

import (
	"encoding/json"
	"time"

	"github.com/aristath/compass/internal/domain"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// UserScoped is implemented by event data that belongs to one user. Such
// events are only delivered to that user.
type UserScoped interface {
	OwnerID() string
}

// IndicesRefreshedData carries the replaced index snapshot
type IndicesRefreshedData struct {
	Indices []domain.IndexData `json:"indices"`
	Failed  int                `json:"failed"`
}

// EventType returns the event type for IndicesRefreshedData
func (d *IndicesRefreshedData) EventType() EventType {
	return IndicesRefreshed
}

// DecisionCreatedData contains data for DecisionCreated events
type DecisionCreatedData struct {
	DecisionID   string `json:"decision_id"`
	UserID       string `json:"user_id"`
	TickerSymbol string `json:"ticker_symbol"`
	Action       string `json:"action"`
	Rational     bool   `json:"rational"`
}

// EventType returns the event type for DecisionCreatedData
func (d *DecisionCreatedData) EventType() EventType {
	return DecisionCreated
}

// OwnerID returns the user who recorded the decision
func (d *DecisionCreatedData) OwnerID() string {
	return d.UserID
}

// PortfolioCreatedData contains data for PortfolioCreated events
type PortfolioCreatedData struct {
	PortfolioID string `json:"portfolio_id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
}

// EventType returns the event type for PortfolioCreatedData
func (d *PortfolioCreatedData) EventType() EventType {
	return PortfolioCreated
}

// OwnerID returns the user who created the portfolio
func (d *PortfolioCreatedData) OwnerID() string {
	return d.UserID
}

// CommentaryGeneratedData contains data for CommentaryGenerated events
type CommentaryGeneratedData struct {
	Key    string `json:"key"`
	Cached bool   `json:"cached"`
}

// EventType returns the event type for CommentaryGeneratedData
func (d *CommentaryGeneratedData) EventType() EventType {
	return CommentaryGenerated
}

// CacheClearedData names the cleared key; empty means all entries
type CacheClearedData struct {
	Key string `json:"key,omitempty"`
}

// EventType returns the event type for CacheClearedData
func (d *CacheClearedData) EventType() EventType {
	return CacheCleared
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// Event is a published event with typed data
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// VisibleTo reports whether userID may see the event. User-scoped events
// are hidden from anonymous callers and from other users.
func (e *Event) VisibleTo(userID string) bool {
	scoped, ok := e.Data.(UserScoped)
	if !ok {
		return true
	}
	return userID != "" && scoped.OwnerID() == userID
}

// MarshalJSON encodes Data with its concrete type
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON decodes Data into the type matching Type
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case IndicesRefreshed:
		eventData = &IndicesRefreshedData{}
	case DecisionCreated:
		eventData = &DecisionCreatedData{}
	case PortfolioCreated:
		eventData = &PortfolioCreatedData{}
	case CommentaryGenerated:
		eventData = &CommentaryGeneratedData{}
	case CacheCleared:
		eventData = &CacheClearedData{}
	case ErrorOccurred:
		eventData = &ErrorEventData{}
	default:
		eventData = &GenericEventData{Type: aux.Type}
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
