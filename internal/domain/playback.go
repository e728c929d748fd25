package domain

import "context"

// MediaEventKind identifies an inbound transport event
type MediaEventKind int

const (
	MediaTimeUpdate MediaEventKind = iota
	MediaDurationChange
	MediaEnded
	MediaError
)

func (k MediaEventKind) String() string {
	switch k {
	case MediaTimeUpdate:
		return "timeupdate"
	case MediaDurationChange:
		return "durationchange"
	case MediaEnded:
		return "ended"
	case MediaError:
		return "error"
	default:
		return "unknown"
	}
}

// MediaEvent is emitted by a MediaResource. Position and Duration are in seconds.
type MediaEvent struct {
	Kind     MediaEventKind
	Position float64
	Duration float64
	Err      error
}

// MediaResource is one opened audio stream
type MediaResource interface {
	Play() error
	Pause() error
	Seek(position float64) error
	SetRate(rate float64) error

	// Events is closed when the resource is closed
	Events() <-chan MediaEvent
	Close() error
}

// MediaBackend opens playable resources
type MediaBackend interface {
	Open(ctx context.Context, url string) (MediaResource, error)
}
