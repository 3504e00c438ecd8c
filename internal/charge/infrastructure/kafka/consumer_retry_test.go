package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/dmehra2102/charge-ledger/internal/charge/application"
	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
)

type fakeReader struct {
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeClaims struct {
	claimed   map[string]bool
	seenFails int
	released  []string
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{claimed: map[string]bool{}}
}

func (f *fakeClaims) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%d:%d", topic, partition, offset)
}

func (f *fakeClaims) EventKey(source, eventID string) string { return source + ":" + eventID }

func (f *fakeClaims) Seen(_ context.Context, key string) (bool, error) {
	if f.seenFails > 0 {
		f.seenFails--
		return false, errors.New("redis unavailable")
	}
	if f.claimed[key] {
		return true, nil
	}
	f.claimed[key] = true
	return false, nil
}

func (f *fakeClaims) Release(_ context.Context, key string) error {
	delete(f.claimed, key)
	f.released = append(f.released, key)
	return nil
}

type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) ApplyGatewayEvent(ctx context.Context, ev application.GatewayEvent, headers map[string]string, traceparent string) (*domain.Charge, error) {
	args := m.Called(ctx, ev, headers, traceparent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}

type outcomes []string

func (o *outcomes) GatewayEvent(_, outcome string) { *o = append(*o, outcome) }

func newTestConsumer(app GatewayEventApplier, claims *fakeClaims, reader *fakeReader, rec *outcomes) *Consumer {
	return &Consumer{
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		reader:       reader,
		svc:          app,
		idem:         claims,
		metrics:      rec,
		tracer:       otel.Tracer("charge-consumer-test"),
		retryBackoff: time.Millisecond,
	}
}

var paidHook = kafka.Message{
	Topic:  "gateway.webhooks",
	Offset: 7,
	Value:  []byte(`{"id":"hook_1","type":"charge.paid","data":{"id":"ch_1","paid_amount":700}}`),
}

func testCharge(t *testing.T) *domain.Charge {
	t.Helper()
	c, err := domain.NewCharge("ord_1", "ch_1", "", 1000)
	require.NoError(t, err)
	return c
}

func TestProcess_TransientFailureIsRetriedBeforeCommit(t *testing.T) {
	app := new(MockApplier)
	claims := newFakeClaims()
	reader := &fakeReader{}
	var rec outcomes
	c := newTestConsumer(app, claims, reader, &rec)

	app.On("ApplyGatewayEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("db down")).Once()
	app.On("ApplyGatewayEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(testCharge(t), nil).Once()

	require.NoError(t, c.process(context.Background(), paidHook))

	app.AssertNumberOfCalls(t, "ApplyGatewayEvent", 2)
	assert.Equal(t, outcomes{"error", "applied"}, rec)
	require.Len(t, reader.committed, 1)
	assert.Equal(t, int64(7), reader.committed[0].Offset)
	assert.True(t, claims.claimed["gateway:hook_1"])
	assert.Empty(t, claims.released)
}

func TestProcess_IdempotencyOutageIsRetried(t *testing.T) {
	app := new(MockApplier)
	claims := newFakeClaims()
	claims.seenFails = 2
	reader := &fakeReader{}
	var rec outcomes
	c := newTestConsumer(app, claims, reader, &rec)

	app.On("ApplyGatewayEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(testCharge(t), nil).Once()

	require.NoError(t, c.process(context.Background(), paidHook))

	app.AssertNumberOfCalls(t, "ApplyGatewayEvent", 1)
	assert.Len(t, reader.committed, 1)
}

func TestProcess_ShutdownDuringFailureLeavesMessageUncommitted(t *testing.T) {
	app := new(MockApplier)
	claims := newFakeClaims()
	reader := &fakeReader{}
	var rec outcomes
	c := newTestConsumer(app, claims, reader, &rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.On("ApplyGatewayEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, errors.New("db down"))

	err := c.process(ctx, paidHook)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reader.committed)
	assert.Equal(t, []string{"gateway:hook_1"}, claims.released)
	assert.False(t, claims.claimed["gateway:hook_1"])
}

func TestProcess_RejectedAndUnknownAreCommitted(t *testing.T) {
	for name, applyErr := range map[string]error{
		"rejected":       fmt.Errorf("gateway event hook_1: %w", domain.NewInvalidOperationError("can't pay a charge that was already paid")),
		"unknown_charge": application.ErrChargeNotFound,
	} {
		t.Run(name, func(t *testing.T) {
			app := new(MockApplier)
			reader := &fakeReader{}
			var rec outcomes
			c := newTestConsumer(app, newFakeClaims(), reader, &rec)

			app.On("ApplyGatewayEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, applyErr).Once()

			require.NoError(t, c.process(context.Background(), paidHook))
			app.AssertNumberOfCalls(t, "ApplyGatewayEvent", 1)
			assert.Equal(t, outcomes{name}, rec)
			assert.Len(t, reader.committed, 1)
		})
	}
}

func TestProcess_DuplicateAndMalformedAreCommitted(t *testing.T) {
	app := new(MockApplier)
	claims := newFakeClaims()
	claims.claimed["gateway:hook_1"] = true
	reader := &fakeReader{}
	var rec outcomes
	c := newTestConsumer(app, claims, reader, &rec)

	require.NoError(t, c.process(context.Background(), paidHook))
	require.NoError(t, c.process(context.Background(), kafka.Message{Value: []byte("not json")}))

	app.AssertNotCalled(t, "ApplyGatewayEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, outcomes{"duplicate", "malformed"}, rec)
	assert.Len(t, reader.committed, 2)
}

func TestRun_StopsCleanlyOnCancel(t *testing.T) {
	var rec outcomes
	c := newTestConsumer(new(MockApplier), newFakeClaims(), &fakeReader{}, &rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Run(ctx))
}
