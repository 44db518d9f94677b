package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newFakeServer(t *testing.T) []option.ClientOption {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	admin, err := pubsub.NewClient(ctx, "proj", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "alerts")
	require.NoError(t, err)

	return []option.ClientOption{option.WithGRPCConn(conn)}
}

func TestSendPublishesPlainText(t *testing.T) {
	t.Parallel()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "proj", option.WithGRPCConn(conn))
	require.NoError(t, err)
	topic, err := client.CreateTopic(ctx, "alerts")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)

	n := New(topic, "token-1")
	require.NoError(t, n.Send(ctx, "Monitoring app stopped."))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "Monitoring app stopped.", string(msgs[0].Data))
	require.Equal(t, "token-1", msgs[0].Attributes[AttrRecipient])
	require.Equal(t, "text/plain", msgs[0].Attributes[AttrContentType])
}

func TestDialAndSend(t *testing.T) {
	t.Parallel()

	opts := newFakeServer(t)
	ctx := context.Background()

	n, closeFn, err := Dial(ctx, "proj", "alerts", "", opts...)
	require.NoError(t, err)
	require.NoError(t, n.Send(ctx, "hello"))
	require.NoError(t, closeFn())
}

func TestDialValidation(t *testing.T) {
	t.Parallel()

	_, _, err := Dial(context.Background(), "", "alerts", "tok")
	require.Error(t, err)
	_, _, err = Dial(context.Background(), "proj", "", "tok")
	require.Error(t, err)
}

func TestSendMissingTopic(t *testing.T) {
	t.Parallel()

	n := &Notifier{}
	require.Error(t, n.Send(context.Background(), "x"))
}

func TestSendUnknownTopicFails(t *testing.T) {
	t.Parallel()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "proj", option.WithGRPCConn(conn))
	require.NoError(t, err)
	topic := client.Topic("missing")
	t.Cleanup(topic.Stop)

	require.Error(t, New(topic, "tok").Send(ctx, "x"))
}
