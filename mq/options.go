package mq

import (
	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/metrics"
)

// Option 配置 MQ 客户端的选项
type Option func(*options)

// options 内部选项结构
type options struct {
	Logger clog.Logger
	Meter  metrics.Meter
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.Logger = l.WithNamespace("mq")
		}
	}
}

// WithMeter 注入指标记录器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.Meter = m
	}
}
