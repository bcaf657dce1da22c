package entities

import "time"

// DatasetEventType is the kind of change announced to other replicas.
type DatasetEventType string

const (
	DatasetEventReload           DatasetEventType = "table_reload"
	DatasetEventOverridesRefresh DatasetEventType = "overrides_refresh"
)

// DatasetEvent announces that a replica changed shared data on disk.
type DatasetEvent struct {
	ID        string           `json:"id"`
	Type      DatasetEventType `json:"type"`
	Origin    string           `json:"origin"`
	Source    string           `json:"source,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
