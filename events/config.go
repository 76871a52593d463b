package events

// Config names the four Kafka topics the publisher writes to.
type Config struct {
	ServiceRegisteredTopic   string
	ServiceUnregisteredTopic string
	ModuleRegisteredTopic    string
	ModuleUnregisteredTopic  string
}

func (c *Config) setDefaults() {
	if c.ServiceRegisteredTopic == "" {
		c.ServiceRegisteredTopic = "discovery.service.registered"
	}
	if c.ServiceUnregisteredTopic == "" {
		c.ServiceUnregisteredTopic = "discovery.service.unregistered"
	}
	if c.ModuleRegisteredTopic == "" {
		c.ModuleRegisteredTopic = "discovery.module.registered"
	}
	if c.ModuleUnregisteredTopic == "" {
		c.ModuleUnregisteredTopic = "discovery.module.unregistered"
	}
}
