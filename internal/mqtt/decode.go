package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
)

// eventPayload is the JSON shape accepted on the ingest topic. It matches
// the HTTP ingest endpoint.
type eventPayload struct {
	Timestamp *time.Time        `json:"ts"`
	Source    string            `json:"source"`
	Severity  int               `json:"severity"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta"`
}

// decodeEvent parses and validates a published payload.
func decodeEvent(payload []byte) (*entities.Event, error) {
	var p eventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if p.Source == "" {
		return nil, fmt.Errorf("source is required")
	}
	if len(p.Source) > 64 {
		return nil, fmt.Errorf("source exceeds 64 characters")
	}
	if p.Message == "" {
		return nil, fmt.Errorf("message is required")
	}
	if p.Severity < entities.SeverityMin || p.Severity > entities.SeverityMax {
		return nil, fmt.Errorf("severity %d out of range", p.Severity)
	}

	event := &entities.Event{
		Source:   p.Source,
		Severity: p.Severity,
		Message:  p.Message,
		Meta:     p.Meta,
	}
	if p.Timestamp != nil {
		event.Timestamp = p.Timestamp.UTC()
	}
	return event, nil
}
