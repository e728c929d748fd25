package query

import (
	"strconv"
	"strings"
	"time"
)

// Key identifies one cached read: the operation family plus its parameters
type Key struct {
	Family string
	Params string
}

// paramSep joins key params (ASCII unit separator)
const paramSep = "\x1f"

// NewKey builds a key for family with the given parameters in order
func NewKey(family string, params ...string) Key {
	return Key{Family: family, Params: strings.Join(params, paramSep)}
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Family
	}
	return k.Family + ":" + strings.ReplaceAll(k.Params, paramSep, ",")
}

// flightKey scopes singleflight de-duplication to a single request token
func flightKey(k Key, token uint64) string {
	return k.Family + paramSep + k.Params + paramSep + strconv.FormatUint(token, 10)
}

// Status is the lifecycle state of a cache entry
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of an entry. Value is kept while the
// entry is stale or reloading.
type Snapshot struct {
	Key       Key
	Value     any
	HasValue  bool
	Status    Status
	Stale     bool
	FetchedAt time.Time
	Err       error
}

// Loading returns true when there is nothing to show yet
func (s Snapshot) Loading() bool {
	return s.Status == StatusLoading && !s.HasValue
}
