package entity

import "time"

// AlertKind classifies operational alerts.
type AlertKind string

const (
	// AlertConfiguration is raised when the provider rejects the deployment's credentials.
	AlertConfiguration AlertKind = "configuration"
	// AlertStore is raised when the quota store cannot be reached.
	AlertStore AlertKind = "store"
)

// Alert is an operator-facing notification. It never reaches end users.
type Alert struct {
	Kind     AlertKind         `json:"kind"`
	Message  string            `json:"message"`
	Detail   string            `json:"detail,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
	RaisedAt time.Time         `json:"raised_at"`
}
