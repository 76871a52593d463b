// Package mq 提供基于 Kafka 的消息队列组件。
//
// MQ 组件在 Kafka 连接器的基础上提供了统一的发布-订阅语义：广播订阅与消费组
// （负载均衡）订阅，并对每条消息的处理耗时与吞吐量进行度量。
//
// 基本使用：
//
//	kafkaConn, _ := connector.NewKafka(kafkaConfig)
//	mqClient, _ := mq.New(kafkaConn, kafkaConfig, mq.WithLogger(logger))
//
//	// 发布消息
//	err := mqClient.Publish(ctx, "discovery.events", data)
//
//	// 消费组订阅（负载均衡）
//	sub, _ := mqClient.QueueSubscribe(ctx, "discovery.events", "broker-workers", func(ctx context.Context, msg mq.Message) error {
//	    fmt.Printf("收到消息: %s\n", string(msg.Data()))
//	    return nil
//	})
package mq

import (
	"context"

	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/connector"
	"github.com/pipestream/broker/xerrors"
)

// Message 消息接口
// 封装了底层消息的细节，提供统一的数据访问和确认机制
type Message interface {
	// Subject 获取消息主题 (Kafka Topic)
	Subject() string

	// Data 获取消息内容
	Data() []byte

	// Ack 确认消息处理成功，提交消费位点
	Ack() error

	// Nak 否认消息，当前实现为空操作（由重试中间件负责重试语义）
	Nak() error
}

// Handler 消息处理函数
type Handler func(ctx context.Context, msg Message) error

// Subscription 订阅句柄
// 用于管理订阅的生命周期（如取消订阅）
type Subscription interface {
	// Unsubscribe 取消订阅
	Unsubscribe() error

	// IsValid 检查订阅是否有效
	IsValid() bool
}

// Client 定义了 MQ 组件的核心能力
type Client interface {
	// Publish 发布消息
	Publish(ctx context.Context, subject string, data []byte, opts ...PublishOption) error

	// Subscribe 广播订阅
	// 不指定消费组时，每个实例都会收到全部消息
	// 适用于：配置更新通知、缓存失效通知
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)

	// QueueSubscribe 队列订阅 (负载均衡)
	// 同一个 queue 组内的消费者，每条消息只会被其中一个处理
	// 适用于：任务分发、事件处理
	// 对应 Kafka 的 Consumer Group 概念
	QueueSubscribe(ctx context.Context, subject string, queue string, handler Handler) (Subscription, error)

	// SubscribeChan 以 Channel 的形式订阅消息，便于 for-range 消费
	SubscribeChan(ctx context.Context, subject string, opts ...SubscribeOption) (<-chan Message, Subscription, error)

	// Close 关闭客户端
	Close() error
}

// New 创建 MQ 客户端
//
// 参数:
//   - conn: Kafka 连接器
//   - connCfg: 底层 Kafka 连接配置（用于订阅时派生专用消费客户端）
//   - opts: 可选参数 (Logger, Meter)
func New(conn connector.KafkaConnector, connCfg *connector.KafkaConfig, opts ...Option) (Client, error) {
	if conn == nil {
		return nil, ErrConnectorRequired
	}
	if connCfg == nil {
		return nil, xerrors.Wrap(ErrConfigNil, "mq: kafka connector config is required")
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	if opt.Logger == nil {
		logger, err := clog.New(&clog.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		})
		if err != nil {
			return nil, xerrors.Wrapf(err, "failed to create default logger")
		}
		opt.Logger = logger.WithNamespace("mq")
	}

	driver := NewKafkaDriver(conn, connCfg, opt.Logger)
	return newClient(driver, opt.Logger, opt.Meter), nil
}
