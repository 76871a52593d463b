package mq

// DriverType 驱动类型
type DriverType string

const (
	// DriverKafka 使用 Kafka 作为底层消息总线
	DriverKafka DriverType = "kafka"
)

// Config MQ 组件配置
// 主要用于配置驱动初始化；底层连接器需通过 New 显式传入。
type Config struct {
	// Driver 指定底层驱动，目前仅支持 kafka
	Driver DriverType `json:"driver" yaml:"driver"`
}

func (c *Config) setDefaults() {
	if c == nil {
		return
	}
	if c.Driver == "" {
		c.Driver = DriverKafka
	}
}

func (c *Config) validate() error {
	if c == nil {
		return ErrConfigNil
	}
	switch c.Driver {
	case DriverKafka:
		return nil
	default:
		return ErrUnsupportedDriver
	}
}
