package modulecallback

import "time"

// Config configures the module callback client's channel cache and
// transport tuning.
type Config struct {
	// ChannelTTL is the idle-TTL (since last use) before a cached channel
	// is evicted. Default 15 minutes.
	ChannelTTL time.Duration `yaml:"channel_ttl" json:"channel_ttl"`

	// ChannelCapacity bounds the number of cached channels. Default 1000.
	ChannelCapacity int `yaml:"channel_capacity" json:"channel_capacity"`

	// FlowControlWindow sets the initial HTTP/2 flow-control window, both
	// inbound and outbound, in bytes. Default 100 MiB: the 64 KiB default
	// most gRPC stacks impose bottlenecks large module-metadata payloads.
	FlowControlWindow int32 `yaml:"flow_control_window" json:"flow_control_window"`

	// DialTimeout bounds how long opening a new channel may take.
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// CallTimeout bounds a single GetServiceRegistration call.
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout"`

	// ShutdownGrace bounds how long the client waits for an evicted channel
	// to close; after it, a warning is logged and the close goes on in the
	// background.
	ShutdownGrace time.Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
}

const defaultFlowControlWindow = 100 * 1024 * 1024 // 100 MiB

func (c *Config) setDefaults() {
	if c.ChannelTTL <= 0 {
		c.ChannelTTL = 15 * time.Minute
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = 1000
	}
	if c.FlowControlWindow <= 0 {
		c.FlowControlWindow = defaultFlowControlWindow
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 500 * time.Millisecond
	}
}
