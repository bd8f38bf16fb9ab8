package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
	now func() time.Time
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
		now: time.Now,
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped publishes typed data and logs it. A nil manager is a no-op so
// components can run without a bus.
func (m *Manager) EmitTyped(module string, data EventData) {
	if m == nil || data == nil {
		return
	}

	event := Event{
		Type:      data.EventType(),
		Timestamp: m.now(),
		Module:    module,
		Data:      data,
	}

	m.bus.Publish(event)

	eventJSON, err := json.Marshal(&event)
	if err != nil {
		m.log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to encode event")
		return
	}
	m.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	m.EmitTyped(module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}
