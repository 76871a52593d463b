package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pipestream/broker/mq"
)

type capturedPublish struct {
	topic string
	data  []byte
	key   string
}

type fakeMQClient struct {
	published []capturedPublish
}

func (f *fakeMQClient) Publish(ctx context.Context, subject string, data []byte, opts ...mq.PublishOption) error {
	f.published = append(f.published, capturedPublish{topic: subject, data: data})
	return nil
}
func (f *fakeMQClient) Subscribe(ctx context.Context, subject string, handler mq.Handler) (mq.Subscription, error) {
	return nil, nil
}
func (f *fakeMQClient) QueueSubscribe(ctx context.Context, subject, queue string, handler mq.Handler) (mq.Subscription, error) {
	return nil, nil
}
func (f *fakeMQClient) SubscribeChan(ctx context.Context, subject string, opts ...mq.SubscribeOption) (<-chan mq.Message, mq.Subscription, error) {
	return nil, nil, nil
}
func (f *fakeMQClient) Close() error { return nil }

func TestPublishServiceRegisteredUsesConfiguredTopic(t *testing.T) {
	client := &fakeMQClient{}
	pub, err := New(client, Config{}, nil)
	require.NoError(t, err)

	pub.PublishServiceRegistered(context.Background(), RegisteredPayload{
		ServiceID: "auth-svc-10.0.0.1-7000", Name: "auth-svc", Kind: "SERVICE",
		Host: "10.0.0.1", Port: 7000, Version: "1.0.0", Timestamp: time.Now(),
	})

	require.Len(t, client.published, 1)
	require.Equal(t, "discovery.service.registered", client.published[0].topic)

	var decoded RegisteredPayload
	require.NoError(t, json.Unmarshal(client.published[0].data, &decoded))
	require.Equal(t, "auth-svc", decoded.Name)
}

func TestPublishModuleUnregisteredUsesConfiguredTopic(t *testing.T) {
	client := &fakeMQClient{}
	pub, err := New(client, Config{ModuleUnregisteredTopic: "custom.topic"}, nil)
	require.NoError(t, err)

	pub.PublishModuleUnregistered(context.Background(), UnregisteredPayload{ServiceID: "pdf-extract-10.0.0.2-7001", Name: "pdf-extract"})

	require.Len(t, client.published, 1)
	require.Equal(t, "custom.topic", client.published[0].topic)
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, Config{}, nil)
	require.ErrorIs(t, err, ErrClientNil)
}
