package discoverystore

import "time"

// Config 组件配置
type Config struct {
	// Namespace Etcd Key 前缀，默认 "/broker/discovery"
	Namespace string `yaml:"namespace" json:"namespace"`

	// DefaultTTL 默认注册租约时长，默认 30s
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// RetryInterval watch 重连间隔，默认 1s
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval"`

	// HealthGateDeadline WaitForHealthy 的默认等待上限，默认 30s
	HealthGateDeadline time.Duration `yaml:"health_gate_deadline" json:"health_gate_deadline"`

	// HealthGatePollInterval WaitForHealthy 的轮询间隔，默认 1s
	HealthGatePollInterval time.Duration `yaml:"health_gate_poll_interval" json:"health_gate_poll_interval"`
}

func (c *Config) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "/broker/discovery"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 30 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
	if c.HealthGateDeadline <= 0 {
		c.HealthGateDeadline = 30 * time.Second
	}
	if c.HealthGatePollInterval <= 0 {
		c.HealthGatePollInterval = time.Second
	}
}
