package events

import "github.com/google/uuid"

// keyNamespace is a fixed, package-private namespace used to derive a
// deterministic UUID from service ids that are not themselves well-formed
// UUIDs. Any stable namespace value works; this one is arbitrary but fixed.
var keyNamespace = uuid.MustParse("6f6e2e4d-6272-6f6b-6572-2d6576656e74")

// DeriveKey returns the stable per-instance partition key for serviceID, per
// §6: if serviceID already parses as a UUID it is used verbatim, else a
// name-based (v5) UUID is derived from its UTF-8 bytes.
func DeriveKey(serviceID string) uuid.UUID {
	if id, err := uuid.Parse(serviceID); err == nil {
		return id
	}
	return uuid.NewSHA1(keyNamespace, []byte(serviceID))
}
