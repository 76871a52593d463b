package discoverystore

import (
	"github.com/pipestream/broker/clog"
	metrics "github.com/pipestream/broker/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 注入日志记录器，组件会自动追加 "discoverystore" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("discoverystore")
		}
	}
}

// WithMeter 注入指标采集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}
