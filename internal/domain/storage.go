package domain

// KeyValueStore is the local persistent store (BoltDB + memory).
// A missing key returns (nil, false, nil).
type KeyValueStore interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}
