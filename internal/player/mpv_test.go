package player

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/storywave/internal/domain"
)

func TestBuildArgs(t *testing.T) {
	m := NewMPV("", []string{"--volume=80"}, nil)
	require.Equal(t, "mpv", m.command)

	args := m.buildArgs("/tmp/s.sock", "https://cdn.example.com/a.mp3")
	require.Equal(t, []string{
		"--no-video",
		"--no-terminal",
		"--idle=no",
		"--pause",
		"--keep-open=yes",
		"--input-ipc-server=/tmp/s.sock",
		"--volume=80",
		"--",
		"https://cdn.example.com/a.mp3",
	}, args)
}

func TestOpenMissingPlayer(t *testing.T) {
	m := NewMPV("storywave-no-such-player", nil, nil)
	_, err := m.Open(context.Background(), "a.mp3")
	require.ErrorIs(t, err, domain.ErrMediaUnavailable)
}

func TestEventParser(t *testing.T) {
	var p eventParser

	tests := []struct {
		name string
		line string
		want domain.MediaEvent
		ok   bool
	}{
		{"reply", `{"request_id":0,"error":"success"}`, domain.MediaEvent{}, false},
		{"garbage", `not json`, domain.MediaEvent{}, false},
		{"unknown duration", `{"event":"property-change","id":2,"name":"duration"}`, domain.MediaEvent{}, false},
		{"duration", `{"event":"property-change","id":2,"name":"duration","data":120.5}`,
			domain.MediaEvent{Kind: domain.MediaDurationChange, Duration: 120.5}, true},
		{"time carries duration", `{"event":"property-change","id":1,"name":"time-pos","data":3.25}`,
			domain.MediaEvent{Kind: domain.MediaTimeUpdate, Position: 3.25, Duration: 120.5}, true},
		{"not at end", `{"event":"property-change","id":3,"name":"eof-reached","data":false}`, domain.MediaEvent{}, false},
		{"ended", `{"event":"property-change","id":3,"name":"eof-reached","data":true}`,
			domain.MediaEvent{Kind: domain.MediaEnded}, true},
		{"quit", `{"event":"end-file","reason":"quit"}`, domain.MediaEvent{}, false},
	}

	// Cases share the parser, so order matters
	for _, tt := range tests {
		got, ok := p.parse([]byte(tt.line))
		require.Equal(t, tt.ok, ok, tt.name)
		require.Equal(t, tt.want, got, tt.name)
	}

	ev, ok := p.parse([]byte(`{"event":"end-file","reason":"error","file_error":"unrecognized file format"}`))
	require.True(t, ok)
	require.Equal(t, domain.MediaError, ev.Kind)
	require.ErrorIs(t, ev.Err, domain.ErrMediaUnavailable)
	require.Contains(t, ev.Err.Error(), "unrecognized file format")
}

// fakePlayer is the mpv side of a piped IPC connection
type fakePlayer struct {
	conn     net.Conn
	commands chan []any
}

func newFakePlayer(t *testing.T) (*fakePlayer, *resource) {
	t.Helper()
	server, client := net.Pipe()
	fp := &fakePlayer{conn: server, commands: make(chan []any, 64)}

	go func() {
		defer close(fp.commands)
		scanner := bufio.NewScanner(server)
		for scanner.Scan() {
			var cmd ipcCommand
			if json.Unmarshal(scanner.Bytes(), &cmd) == nil {
				fp.commands <- cmd.Command
			}
		}
	}()

	return fp, newResource(client, nil)
}

func (fp *fakePlayer) emit(line string) {
	_, _ = io.WriteString(fp.conn, line+"\n")
}

func (fp *fakePlayer) next(t *testing.T) []any {
	t.Helper()
	select {
	case cmd := <-fp.commands:
		return cmd
	case <-time.After(time.Second):
		t.Fatal("no command received")
		return nil
	}
}

func TestResourceCommands(t *testing.T) {
	fp, res := newFakePlayer(t)
	defer res.Close()

	require.NoError(t, res.Play())
	require.Equal(t, []any{"set_property", "pause", false}, fp.next(t))

	require.NoError(t, res.Pause())
	require.Equal(t, []any{"set_property", "pause", true}, fp.next(t))

	require.NoError(t, res.Seek(42.5))
	require.Equal(t, []any{"seek", 42.5, "absolute"}, fp.next(t))

	require.NoError(t, res.SetRate(1.5))
	require.Equal(t, []any{"set_property", "speed", 1.5}, fp.next(t))
}

func TestResourceEvents(t *testing.T) {
	fp, res := newFakePlayer(t)
	defer res.Close()

	go func() {
		fp.emit(`{"event":"property-change","id":2,"name":"duration","data":60}`)
		fp.emit(`{"request_id":0,"error":"success"}`)
		fp.emit(`{"event":"property-change","id":1,"name":"time-pos","data":1.5}`)
	}()

	require.Equal(t, domain.MediaEvent{Kind: domain.MediaDurationChange, Duration: 60}, <-res.Events())
	require.Equal(t, domain.MediaEvent{Kind: domain.MediaTimeUpdate, Position: 1.5, Duration: 60}, <-res.Events())
}

func TestResourceCloseSendsQuitAndClosesEvents(t *testing.T) {
	fp, res := newFakePlayer(t)

	closed := false
	res.onClose = func() { closed = true }
	require.NoError(t, res.Close())
	require.NoError(t, res.Close())

	require.Equal(t, []any{"quit"}, fp.next(t))
	_, open := <-res.Events()
	require.False(t, open)
	require.True(t, closed)

	require.ErrorIs(t, res.Play(), errClosed)
}

func TestResourceReportsLostConnection(t *testing.T) {
	fp, res := newFakePlayer(t)
	defer res.Close()

	require.NoError(t, fp.conn.Close())

	ev, ok := <-res.Events()
	require.True(t, ok)
	require.Equal(t, domain.MediaError, ev.Kind)
	require.ErrorIs(t, ev.Err, domain.ErrMediaUnavailable)

	_, open := <-res.Events()
	require.False(t, open)
}
