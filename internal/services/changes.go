package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"github.com/google/uuid"
)

// aggregateChange is one canonical entity written by a run
type aggregateChange struct {
	aggregateType string
	eventType     string
	id            string
	entity        interface{}
}

// changeSet keeps one change per aggregate in first-seen order; later writes
// replace the payload but keep the position.
type changeSet struct {
	order   []string
	changes map[string]aggregateChange
}

func newChangeSet() *changeSet {
	return &changeSet{changes: make(map[string]aggregateChange)}
}

func (c *changeSet) add(change aggregateChange) {
	key := change.aggregateType + "/" + change.id
	if _, seen := c.changes[key]; !seen {
		c.order = append(c.order, key)
	}
	c.changes[key] = change
}

func (c *changeSet) len() int {
	return len(c.order)
}

// events builds the PENDING outbox rows. created_at advances by a microsecond
// per event so dispatch order follows first-seen order.
func (c *changeSet) events(tenantID, runID string, now time.Time) ([]*models.OutboxEvent, error) {
	events := make([]*models.OutboxEvent, 0, len(c.order))
	for i, key := range c.order {
		change := c.changes[key]
		payload, err := json.Marshal(map[string]interface{}{
			"run_id":         runID,
			"tenant_id":      tenantID,
			"aggregate_type": change.aggregateType,
			"aggregate_id":   change.id,
			"data":           change.entity,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s event: %w", change.eventType, err)
		}
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		events = append(events, &models.OutboxEvent{
			ID:            uuid.New().String(),
			TenantID:      tenantID,
			AggregateType: change.aggregateType,
			AggregateID:   change.id,
			EventType:     change.eventType,
			Payload:       payload,
			Status:        models.OutboxStatusPending,
			CreatedAt:     createdAt,
			UpdatedAt:     createdAt,
		})
	}
	return events, nil
}
