package testkit

import (
	"testing"

	"github.com/pipestream/broker/mq"
)

// GetKafkaMQClient 获取基于 testcontainers Kafka 的 MQ 客户端
func GetKafkaMQClient(t *testing.T) mq.Client {
	cfg := NewKafkaContainerConfig(t)
	conn := NewKafkaContainerConnector(t)
	client, err := mq.New(conn, cfg, mq.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create MQ client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// NewTestSubject 生成唯一的测试主题名称
func NewTestSubject(prefix string) string {
	return "test." + NewID() + "." + prefix
}

// NewTestConsumerGroup 生成唯一的消费者组名
func NewTestConsumerGroup(prefix string) string {
	return "test-group-" + NewID() + "-" + prefix
}
