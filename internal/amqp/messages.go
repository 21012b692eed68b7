package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"saveup/internal/core"
)

// GoalEventMessage announces a committed change to the goal set. It carries
// the goal id only; consumers needing the full goal read it from the API.
type GoalEventMessage struct {
	Kind       core.ChangeKind `json:"kind"`
	GoalID     string          `json:"goalId,omitempty"`
	Milestones []int           `json:"milestones,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewGoalEventMessage creates the message for change stamped with now.
func NewGoalEventMessage(change core.GoalChange, now time.Time) *GoalEventMessage {
	return &GoalEventMessage{
		Kind:       change.Kind,
		GoalID:     change.GoalID,
		Milestones: change.Milestones,
		Timestamp:  now.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *GoalEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// GoalEventMessageFromJSON parses a message and rejects one without a kind.
func GoalEventMessageFromJSON(data []byte) (*GoalEventMessage, error) {
	var msg GoalEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, errors.New("goal event without kind")
	}
	return &msg, nil
}
