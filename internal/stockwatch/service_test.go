package stockwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-inventory-orders/internal/catalog"
	kafkax "github.com/ariefcatur/go-inventory-orders/internal/kafka"
	"github.com/ariefcatur/go-inventory-orders/internal/orders"
	"github.com/ariefcatur/go-inventory-orders/internal/postgres"
	"github.com/ariefcatur/go-inventory-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu     sync.Mutex
	values [][]byte
}

func (c *capturePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, value)
}

func (c *capturePublisher) published() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte{}, c.values...)
}

func orderCreatedMessage(eventID string, items []orders.ItemQty) kafkago.Message {
	ev := orders.Envelope{
		EventID:       eventID,
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: "o-1",
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID: "o-1",
			Status:  orders.StatusReceived,
			Items:   items,
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(ev)}
}

// Filter dan decode jalan sebelum Redis/DB disentuh, jadi bisa diuji tanpa
// backing store.

func TestHandleOrderCreated_IgnoresOtherEventTypes(t *testing.T) {
	svc := &Service{}
	ev := orders.Envelope{
		EventID:   "ev-1",
		EventType: orders.EventStockLow,
		Payload:   json.RawMessage(`{}`),
	}

	err := svc.HandleOrderCreated(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(ev)})
	assert.NoError(t, err)
}

func TestHandleOrderCreated_BadEnvelope(t *testing.T) {
	svc := &Service{}

	err := svc.HandleOrderCreated(context.Background(), kafkago.Message{Value: []byte(`{`)})
	assert.Error(t, err)
}

func testDeps(t *testing.T) (*pgxpool.Pool, *redis.Client) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	require.NoError(t, postgres.Migrate(ctx, pool))
	t.Cleanup(pool.Close)

	rdb := redisx.New(addr)
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	return pool, rdb
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, available int) catalog.Product {
	t.Helper()
	p, err := (&catalog.Repo{DB: pool}).Create(context.Background(), catalog.NewProduct{
		Name:      "test-" + uuid.NewString()[:8],
		Price:     decimal.RequireFromString("10.00"),
		Available: available,
	})
	require.NoError(t, err)
	return p
}

func TestHandleOrderCreated_CountsAndDedups(t *testing.T) {
	pool, rdb := testDeps(t)
	ctx := context.Background()

	p := seedProduct(t, pool, 2)
	pub := &capturePublisher{}
	svc := &Service{DB: pool, Redis: rdb, Producer: pub, ServiceName: "test-stockwatch", Threshold: 5}

	msg := orderCreatedMessage(uuid.NewString(), []orders.ItemQty{{ProductID: p.ID, Quantity: 3}})
	require.NoError(t, svc.HandleOrderCreated(ctx, msg))

	skey := fmt.Sprintf(redisx.KeySales, p.ID)
	n, err := rdb.Get(ctx, skey).Int()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// available 2 <= threshold 5 -> stock.low terbit
	values := pub.published()
	require.Len(t, values, 1)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(values[0], &env))
	assert.Equal(t, orders.EventStockLow, env.EventType)
	low, err := kafkax.UnwrapPayload[orders.StockLowPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, p.ID, low.ProductID)
	assert.Equal(t, 2, low.Available)
	assert.Equal(t, 5, low.Threshold)

	// redelivery event yang sama: counter & event tidak dobel
	require.NoError(t, svc.HandleOrderCreated(ctx, msg))
	n, err = rdb.Get(ctx, skey).Int()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, pub.published(), 1)
}

func TestHandleOrderCreated_AboveThresholdNoEvent(t *testing.T) {
	pool, rdb := testDeps(t)
	ctx := context.Background()

	p := seedProduct(t, pool, 100)
	pub := &capturePublisher{}
	svc := &Service{DB: pool, Redis: rdb, Producer: pub, ServiceName: "test-stockwatch", Threshold: 5}

	msg := orderCreatedMessage(uuid.NewString(), []orders.ItemQty{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, svc.HandleOrderCreated(ctx, msg))

	n, err := rdb.Get(ctx, fmt.Sprintf(redisx.KeySales, p.ID)).Int()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, pub.published())
}

// Kalau proses gagal di tengah, dedup key belum tertulis dan redelivery
// masih diproses (at-least-once).
func TestHandleOrderCreated_FailureAllowsRedelivery(t *testing.T) {
	pool, rdb := testDeps(t)
	ctx := context.Background()

	p := seedProduct(t, pool, 100)

	badPool, err := pgxpool.New(ctx, os.Getenv("TEST_POSTGRES_DSN"))
	require.NoError(t, err)
	badPool.Close() // query ke pool tertutup pasti error

	eventID := uuid.NewString()
	msg := orderCreatedMessage(eventID, []orders.ItemQty{{ProductID: p.ID, Quantity: 1}})
	dkey := fmt.Sprintf(redisx.KeyDedup, "stockwatch", eventID)

	failing := &Service{DB: badPool, Redis: rdb, ServiceName: "test-stockwatch", Threshold: 5}
	require.Error(t, failing.HandleOrderCreated(ctx, msg))

	exists, err := redisx.Exists(ctx, rdb, dkey)
	require.NoError(t, err)
	assert.False(t, exists, "event gagal tidak boleh ke-dedup")

	healthy := &Service{DB: pool, Redis: rdb, ServiceName: "test-stockwatch", Threshold: 5}
	require.NoError(t, healthy.HandleOrderCreated(ctx, msg))

	exists, err = redisx.Exists(ctx, rdb, dkey)
	require.NoError(t, err)
	assert.True(t, exists)
}
