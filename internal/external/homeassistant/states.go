package homeassistant

import (
	"context"
	"fmt"
	"time"
)

// EntityState is one entity as returned by GET /api/states/{entity_id}
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
}

// UnitOfMeasurement returns the unit attribute, if any
func (s *EntityState) UnitOfMeasurement() string {
	unit, _ := s.Attributes["unit_of_measurement"].(string)
	return unit
}

// GetState fetches the full state object of an entity.
// A missing entity returns contracts.ErrEntityNotFound.
func (c *Client) GetState(ctx context.Context, entityID string) (*EntityState, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	var state EntityState
	if err := c.fetchJSON(ctx, statePath(entityID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// State implements contracts.StateReader
func (c *Client) State(ctx context.Context, entityID string) (string, error) {
	s, err := c.GetState(ctx, entityID)
	if err != nil {
		return "", err
	}

	c.logger.WithFields(map[string]interface{}{
		"entity_id": entityID,
		"state":     s.State,
		"unit":      s.UnitOfMeasurement(),
	}).Debug("Sensor state read")

	return s.State, nil
}
