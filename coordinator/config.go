package coordinator

// Config tunes the Coordinator's own behavior; the deadlines for C2/C3/C4/C5/C6
// live in their own packages' configs.
type Config struct {
	// EventChannelBuffer bounds the Register event channel, per §9's
	// "bounded event channel" guidance.
	EventChannelBuffer int

	// IdemKeyPrefix namespaces the idempotency key derived from service_id.
	IdemKeyPrefix string
}

func (c *Config) setDefaults() {
	if c.EventChannelBuffer <= 0 {
		c.EventChannelBuffer = 16
	}
	if c.IdemKeyPrefix == "" {
		c.IdemKeyPrefix = "register:"
	}
}
