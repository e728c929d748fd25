package player

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmcdole/storywave/internal/domain"
)

// Observed property IDs
const (
	propTimePos = iota + 1
	propDuration
	propEOF
)

// ipcCommand is one JSON IPC request
type ipcCommand struct {
	Command []any `json:"command"`
}

// ipcMessage is any line mpv writes to the socket: a reply or an event
type ipcMessage struct {
	Event     string          `json:"event"`
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error"`
	FileError string          `json:"file_error"`
}

func encodeCommand(args ...any) ([]byte, error) {
	data, err := json.Marshal(ipcCommand{Command: args})
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return append(data, '\n'), nil
}

func observeCommands() [][]any {
	return [][]any{
		{"observe_property", propTimePos, "time-pos"},
		{"observe_property", propDuration, "duration"},
		{"observe_property", propEOF, "eof-reached"},
	}
}

// eventParser turns IPC lines into media events. It remembers the last
// duration so time updates carry it.
type eventParser struct {
	duration float64
}

// parse returns the event for line, or false when the line carries none
func (p *eventParser) parse(line []byte) (domain.MediaEvent, bool) {
	var msg ipcMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return domain.MediaEvent{}, false
	}

	switch msg.Event {
	case "property-change":
		return p.propertyChange(msg)
	case "end-file":
		if msg.Reason == "error" {
			detail := msg.FileError
			if detail == "" {
				detail = "playback error"
			}
			return domain.MediaEvent{
				Kind: domain.MediaError,
				Err:  fmt.Errorf("%w: %s", domain.ErrMediaUnavailable, detail),
			}, true
		}
	}
	return domain.MediaEvent{}, false
}

func (p *eventParser) propertyChange(msg ipcMessage) (domain.MediaEvent, bool) {
	switch msg.ID {
	case propTimePos:
		var pos float64
		if !decodeData(msg.Data, &pos) {
			return domain.MediaEvent{}, false
		}
		return domain.MediaEvent{Kind: domain.MediaTimeUpdate, Position: pos, Duration: p.duration}, true
	case propDuration:
		var d float64
		if !decodeData(msg.Data, &d) {
			return domain.MediaEvent{}, false
		}
		p.duration = d
		return domain.MediaEvent{Kind: domain.MediaDurationChange, Duration: d}, true
	case propEOF:
		var eof bool
		if decodeData(msg.Data, &eof) && eof {
			return domain.MediaEvent{Kind: domain.MediaEnded}, true
		}
	}
	return domain.MediaEvent{}, false
}

// decodeData unmarshals a property value. Unavailable properties arrive
// as null or without data.
func decodeData(raw json.RawMessage, out any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

var errClosed = errors.New("media resource closed")
