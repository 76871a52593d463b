//go:build integration

package mq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipestream/broker/testkit"
)

func TestMQKafkaIntegration(t *testing.T) {
	cfg := testkit.NewKafkaContainerConfig(t)
	conn := testkit.NewKafkaContainerConnector(t)

	client, err := New(conn, cfg, WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	defer client.Close()

	subject := testkit.NewTestSubject("events")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	received := make(chan Message, 1)
	sub, err := client.QueueSubscribe(ctx, subject, testkit.NewTestConsumerGroup("workers"), func(ctx context.Context, msg Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// 给消费者一点时间完成分区分配
	time.Sleep(2 * time.Second)

	require.NoError(t, client.Publish(ctx, subject, []byte("payload")))

	select {
	case msg := <-received:
		assert.Equal(t, subject, msg.Subject())
		assert.Equal(t, []byte("payload"), msg.Data())
		assert.NoError(t, msg.Ack())
	case <-ctx.Done():
		t.Fatal("timed out waiting for kafka message")
	}
}
