package collab

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload // userID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

func (pm *PresenceManager) Update(userID string, p *PresencePayload) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[userID] = p
}

func (pm *PresenceManager) Remove(userID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, userID)
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		result[k] = v
	}
	return result
}

func (pm *PresenceManager) StateMessage() *Message {
	all := pm.GetAll()
	payload, err := json.Marshal(PresenceStatePayload{Presences: all})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}

// Participants lists who is present, sorted by user id, in the form stored
// on the board envelope.
func (pm *PresenceManager) Participants() json.RawMessage {
	all := pm.GetAll()
	list := make([]PresenceJoinPayload, 0, len(all))
	for id, p := range all {
		list = append(list, PresenceJoinPayload{UserID: id, DisplayName: p.DisplayName})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	data, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return data
}
