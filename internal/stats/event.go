// Package stats aggregates per-lane counting events into windowed and
// cumulative traffic statistics.
package stats

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one counted vehicle: a track that resolved to a lane. Events
// are immutable once created; the aggregator appends them and never
// mutates them.
type Event struct {
	ID        string    `json:"id"`
	Lane      string    `json:"lane"`
	Class     string    `json:"class"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a globally unique ID. IDs stay unique
// across aggregator resets and process restarts.
func NewEvent(lane, class string, ts time.Time) Event {
	return Event{
		ID:        fmt.Sprintf("evt_%s", uuid.NewString()),
		Lane:      lane,
		Class:     class,
		Timestamp: ts,
	}
}
