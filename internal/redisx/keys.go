package redisx

import "time"

const (
	// Cache order lengkap (JSON): order:{order_id}
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Counter kumulatif qty terjual per product: sales:{product_id}
	KeySales = "sales:%s"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
)
