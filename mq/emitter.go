package mq

import (
	"context"
	"encoding/json"
	"log"

	"craftriver/rdx"
)

const channel = "entity-events"

// Index describes one entity mutation for downstream consumers
// (notification fan-out, future search indexing).
type Index struct {
	EntityType string `json:"entity_type"`
	Method     string `json:"method"`
	EntityId   string `json:"entity_id"`
	ItemId     string `json:"item_id"`
	ItemType   string `json:"item_type"`
}

// Emit publishes an entity event to Redis. Failures are logged, never
// propagated; events are advisory.
func Emit(ctx context.Context, eventName string, content Index) {
	data, err := json.Marshal(content)
	if err != nil {
		log.Printf("[mq] marshal %s: %v", eventName, err)
		return
	}
	if err := rdx.Conn.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[mq] publish %s: %v", eventName, err)
	}
}
