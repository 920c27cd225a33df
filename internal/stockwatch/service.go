package stockwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	kafkax "github.com/ariefcatur/go-inventory-orders/internal/kafka"
	"github.com/ariefcatur/go-inventory-orders/internal/orders"
	"github.com/ariefcatur/go-inventory-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher dipenuhi *kafka.Producer; interface supaya bisa di-fake di test.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service mengamati order.created: naikkan counter penjualan per product dan
// terbitkan stock.low kalau sisa stok <= threshold. Murni observasional —
// tidak pernah menulis balik ke products (tidak ada restock).
type Service struct {
	DB          *pgxpool.Pool
	Redis       *redis.Client
	Producer    Publisher // publish stock.low; boleh nil
	ServiceName string
	Threshold   int
}

// HandleOrderCreated: dipasang sebagai handler consumer.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	} // ignore

	// 2) dedup via Redis (pakai event_id). Key baru ditulis SETELAH proses
	// sukses, supaya redelivery tidak kehilangan event yang gagal di tengah.
	dkey := fmt.Sprintf(redisx.KeyDedup, "stockwatch", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, it := range p.Items {
		skey := fmt.Sprintf(redisx.KeySales, it.ProductID)
		if err := s.Redis.IncrBy(ctx, skey, int64(it.Quantity)).Err(); err != nil {
			log.Printf("sales counter %s: %v", it.ProductID, err)
		}

		available, err := s.availability(ctx, it.ProductID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue // product sudah dihapus, biarkan
		}
		if err != nil {
			return err
		}
		if available <= s.Threshold {
			s.publishLow(it.ProductID, available, env.TraceID)
		}
	}

	return s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
}

func (s *Service) availability(ctx context.Context, productID string) (int, error) {
	var available int
	err := s.DB.QueryRow(ctx, `SELECT available FROM products WHERE id=$1`, productID).Scan(&available)
	return available, err
}

func (s *Service) publishLow(productID string, available int, trace string) {
	log.Printf("low stock: product=%s available=%d threshold=%d", productID, available, s.Threshold)
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockLow,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: productID,
		Payload: kafkax.MustMarshal(orders.StockLowPayload{
			ProductID: productID,
			Available: available,
			Threshold: s.Threshold,
		}),
	}
	s.Producer.Publish([]byte(productID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockLow)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
