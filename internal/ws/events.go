package ws

import "time"

// ChangeEvent notifies connected clients that a record of some entity
// changed, so admin views can refetch without polling. It carries ids only,
// never record payloads.
type ChangeEvent struct {
	Type     string    `json:"type"`
	Entity   string    `json:"entity"`
	Action   string    `json:"action"`
	EntityID int64     `json:"entity_id"`
	Time     time.Time `json:"time"`
}

// changeEventType is the Type value of every ChangeEvent.
const changeEventType = "change"
