package updates_test

import (
	"context"
	"sync"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/parkscout/go-zones/pkg/updates"
	"github.com/parkscout/go-zones/pkg/zones"
)

// setupPubsubTest starts an in-process Pub/Sub server with one topic and one
// subscription and returns a client connected to it.
func setupPubsubTest(t *testing.T, projectID, topicID, subID string) (*pubsub.Client, *pubsub.Topic, *pubsub.Subscription) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, projectID, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, topicID)
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	return client, topic, sub
}

// fakeConsumer is a channel-backed Consumer for driving the listener without
// a broker.
type fakeConsumer struct {
	msgChan  chan updates.UpdateMessage
	doneChan chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	startErr   error
	startCount int
	stopCount  int
}

func newFakeConsumer(bufferSize int) *fakeConsumer {
	return &fakeConsumer{
		msgChan:  make(chan updates.UpdateMessage, bufferSize),
		doneChan: make(chan struct{}),
	}
}

func (f *fakeConsumer) Updates() <-chan updates.UpdateMessage { return f.msgChan }

func (f *fakeConsumer) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCount++
	return f.startErr
}

func (f *fakeConsumer) Stop(_ context.Context) error {
	f.mu.Lock()
	f.stopCount++
	f.mu.Unlock()
	f.stopOnce.Do(func() {
		close(f.msgChan)
		close(f.doneChan)
	})
	return nil
}

func (f *fakeConsumer) Done() <-chan struct{} { return f.doneChan }

func (f *fakeConsumer) Push(msg updates.UpdateMessage) { f.msgChan <- msg }

func (f *fakeConsumer) StartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCount
}

func (f *fakeConsumer) StopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCount
}

// mockRefresher records refresh calls and answers with a configurable error.
type mockRefresher struct {
	mu     sync.Mutex
	calls  []zones.CityID
	refErr error
}

func (m *mockRefresher) RefreshZones(_ context.Context, city zones.CityID) ([]zones.ParkingZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, city)
	if m.refErr != nil {
		return nil, m.refErr
	}
	return []zones.ParkingZone{{ID: city.String() + "_rpp_a_001", CityCode: city}}, nil
}

func (m *mockRefresher) Calls() []zones.CityID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]zones.CityID(nil), m.calls...)
}

// ackTracker produces Ack/Nack funcs whose outcomes tests can poll.
type ackTracker struct {
	mu     sync.Mutex
	acked  bool
	nacked bool
}

func (a *ackTracker) Ack() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
}

func (a *ackTracker) Nack() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
}

func (a *ackTracker) IsAcked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acked
}

func (a *ackTracker) IsNacked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nacked
}
