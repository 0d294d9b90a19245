// ABOUTME: Dual-identity reference type shared by all synced entities.
// ABOUTME: Pairs the permanent local UUID with the backend id once known.
package models

import "github.com/google/uuid"

// Ref identifies a record that may or may not have reached the backend yet.
// ClientID is assigned locally at creation and never changes. ServerID is
// empty until the backend confirms the create, then immutable.
type Ref struct {
	ClientID uuid.UUID
	ServerID string
}

// Synced reports whether the backend has assigned an id for this record.
func (r Ref) Synced() bool {
	return r.ServerID != ""
}

// NewRef creates a reference with a fresh client id and no server id.
func NewRef() Ref {
	return Ref{ClientID: uuid.New()}
}
