// Package localstore provides the local durable key-value store the chat
// client keeps its history and offline queue in.
package localstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value
var ErrNotFound = errors.New("localstore: key not found")

// OutboxKey holds the serialized offline queue
const OutboxKey = "offlineQueue"

const historyKeyPrefix = "chatHistory_"

// HistoryKey returns the key holding the serialized history of a topic
func HistoryKey(topic string) string {
	return historyKeyPrefix + topic
}

// Store is a durable key-value namespace. Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
