package amqp

import (
	"encoding/json"
	"fmt"
	"strings"

	"finze/internal/core"
	"finze/internal/live"
)

// ChangeMessage is the wire form of a live.Change. It carries identifiers
// only; consumers re-read the collection from the store.
type ChangeMessage struct {
	live.Change
}

func NewChangeMessage(change live.Change) *ChangeMessage {
	return &ChangeMessage{Change: change}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" || msg.Collection == "" {
		return nil, fmt.Errorf("change message missing user or collection")
	}
	return &msg, nil
}

// RoutingKey is changes.<userId>.<collection>. Dots in user IDs would break
// topic matching, so they are replaced.
func RoutingKey(userID string, collection core.Collection) string {
	return "changes." + strings.ReplaceAll(userID, ".", "_") + "." + string(collection)
}
