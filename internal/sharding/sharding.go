package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of partitions for order event subjects.
const ShardCount = 256

// GetShardID calculates the deterministic shard ID for a given order ID.
func GetShardID(orderID string) int {
	checksum := crc32.ChecksumIEEE([]byte(orderID))
	return int(checksum % ShardCount)
}

// EventSubject returns the NATS subject for an order's events.
// Format: stock.event.{shard_id}.order.{order_id}
func EventSubject(orderID string) string {
	return fmt.Sprintf("stock.event.%d.order.%s", GetShardID(orderID), orderID)
}
