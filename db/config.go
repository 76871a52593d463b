package db

// Config DB 组件配置
type Config struct {
	// Driver 指定数据库驱动类型，固定为 "postgres"
	Driver string `json:"driver" yaml:"driver"`
}

// setDefaults 设置配置的默认值（内部使用）
func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = "postgres"
	}
}

// validate 验证配置的有效性（内部使用）
func (c *Config) validate() error {
	return nil
}
