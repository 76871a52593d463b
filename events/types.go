// Package events publishes fire-and-forget lifecycle notifications for the
// Registration Coordinator onto four Kafka topics: one per
// {Service,Module}×{Registered,Unregistered}. Publication is best-effort —
// failures are logged by the publisher, never surfaced as a Register/Unregister
// error (§7 kind 9 treats the event bus as a non-blocking collaborator).
package events

import "time"

// RegisteredPayload describes a newly completed registration.
type RegisteredPayload struct {
	ServiceID string    `json:"service_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Host      string    `json:"host"`
	Port      int32     `json:"port"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// UnregisteredPayload describes a completed deregistration.
type UnregisteredPayload struct {
	ServiceID string    `json:"service_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}
