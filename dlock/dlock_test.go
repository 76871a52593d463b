package dlock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewEtcdConfigNil(t *testing.T) {
	locker, err := NewEtcd(nil, nil)
	require.ErrorIs(t, err, ErrConfigNil)
	require.Nil(t, locker)
}

func TestNewEtcdUnsupportedDriver(t *testing.T) {
	locker, err := NewEtcd(nil, &Config{Driver: DriverType("redis")})
	require.Error(t, err)
	require.Nil(t, locker)
}

func TestNewEtcdRequiresConnector(t *testing.T) {
	locker, err := NewEtcd(nil, &Config{Driver: DriverEtcd, DefaultTTL: time.Second})
	require.ErrorIs(t, err, ErrConnectorNil)
	require.Nil(t, locker)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	require.Equal(t, DriverEtcd, cfg.Driver)
	require.Equal(t, 10*time.Second, cfg.DefaultTTL)
	require.Equal(t, 100*time.Millisecond, cfg.RetryInterval)
}
