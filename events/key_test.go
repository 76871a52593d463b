package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyPassesThroughWellFormedUUID(t *testing.T) {
	id := uuid.New()
	require.Equal(t, id, DeriveKey(id.String()))
}

func TestDeriveKeyIsDeterministicForNonUUIDIds(t *testing.T) {
	a := DeriveKey("auth-svc-10.0.0.1-7000")
	b := DeriveKey("auth-svc-10.0.0.1-7000")
	require.Equal(t, a, b)

	c := DeriveKey("auth-svc-10.0.0.1-7001")
	require.NotEqual(t, a, c)
}
