package models

import "time"

// AuditLog represents an audit trail event.
type AuditLog struct {
	ID         string                 `json:"id" firestore:"-"`
	Timestamp  time.Time              `json:"timestamp" firestore:"timestamp"`
	ActorID    string                 `json:"actorId,omitempty" firestore:"actorId,omitempty"` // Empty for anonymous checkout
	Action     string                 `json:"action" firestore:"action"`                       // e.g. "CHECKOUT_COMPLETED", "TRACK_DELETE"
	TargetType string                 `json:"targetType,omitempty" firestore:"targetType,omitempty"`
	TargetID   string                 `json:"targetId,omitempty" firestore:"targetId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
}
