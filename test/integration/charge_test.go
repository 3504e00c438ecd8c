//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/charge-ledger/internal/charge/application"
	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
	chargekafka "github.com/dmehra2102/charge-ledger/internal/charge/infrastructure/kafka"
	pg "github.com/dmehra2102/charge-ledger/internal/charge/infrastructure/postgres"
	"github.com/dmehra2102/charge-ledger/pkg/outbox"
)

var env *Env

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	env, err = Setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "integration setup:", err)
		os.Exit(1)
	}
	code := m.Run()
	env.Teardown(ctx)
	os.Exit(code)
}

func newRepository(t *testing.T) (*pg.Repository, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := pg.NewRepository(discardLogger(), pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo, pool
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConcurrentPayAppliesOnce(t *testing.T) {
	ctx := context.Background()
	repo, pool := newRepository(t)
	svc := application.NewService(repo, nil)

	c, err := svc.Open(ctx, "ord_2", "ch_it_race", "B1", 1000)
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		paid     int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := svc.Pay(ctx, c.ID(), amount, nil, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				paid++
			case errors.Is(err, domain.ErrInvalidOperation):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(100 * (i + 1)))
	}
	wg.Wait()

	assert.Equal(t, 1, paid)
	assert.Equal(t, workers-1, rejected)

	var events int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE aggregate_id=$1 AND type=$2`,
		"ch_it_race", domain.EventChargePaid).Scan(&events))
	assert.Equal(t, 1, events)

	loaded, err := repo.Get(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, loaded.Amount(), loaded.PaidAmount()+loaded.CanceledAmount())
}

func TestChargeLedgerEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo, pool := newRepository(t)
	log := discardLogger()
	svc := application.NewService(repo, nil)

	c, err := svc.Open(ctx, "ord_1", "ch_it_1", "A1", 1000)
	require.NoError(t, err)

	tx := domain.NewTransaction("tran_1", domain.TransactionAuthorization, 1000, time.Now().UTC())
	_, err = svc.RecordTransaction(ctx, c.ID(), tx, false, nil, "")
	require.NoError(t, err)

	_, err = svc.Pay(ctx, c.ID(), 600, map[string]string{"source": "it"}, "")
	require.NoError(t, err)

	_, err = svc.Pay(ctx, c.ID(), 600, nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	loaded, err := repo.GetByGatewayID(ctx, "ch_it_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, loaded.Status())
	assert.Equal(t, int64(600), loaded.PaidAmount())
	assert.Equal(t, int64(400), loaded.CanceledAmount())
	require.Len(t, loaded.Transactions(), 1)
	assert.NotZero(t, loaded.Transactions()[0].ID())

	_, err = repo.Get(ctx, 9999)
	assert.ErrorIs(t, err, application.ErrChargeNotFound)

	writer := chargekafka.NewWriter(env.KAddr)
	writer.AllowAutoTopicCreation = true
	t.Cleanup(func() { _ = writer.Close() })

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	relay := outbox.NewRelay(log, pg.NewOutboxStore(log, pool, 3), outbox.NewDispatcher(log, writer, "charge.events"), "it-relay",
		outbox.WithInterval(100*time.Millisecond))
	go func() { _ = relay.Run(relayCtx) }()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: env.KAddr,
		Topic:   "charge.events",
		GroupID: "it-reader",
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, cancelRead := context.WithTimeout(ctx, time.Minute)
	defer cancelRead()

	var types []string
	for len(types) < 2 {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err)
		if string(msg.Key) != "ch_it_1" {
			continue
		}
		types = append(types, eventType(msg))
		if eventType(msg) == domain.EventChargePaid {
			var ev domain.ChargePaid
			require.NoError(t, json.Unmarshal(msg.Value, &ev))
			assert.Equal(t, int64(600), ev.PaidCents)
		}
	}
	assert.Equal(t, []string{domain.EventTransactionRecorded, domain.EventChargePaid}, types)
}

func eventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
