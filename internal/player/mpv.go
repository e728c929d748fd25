package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmcdole/storywave/internal/domain"
)

const (
	defaultCommand = "mpv"
	dialTimeout    = 5 * time.Second
	dialInterval   = 50 * time.Millisecond
	quitTimeout    = 2 * time.Second
)

// MPV implements domain.MediaBackend by running one headless mpv process per
// resource and driving it over mpv's JSON IPC socket
type MPV struct {
	command string   // player binary, "mpv" when empty
	args    []string // extra arguments from the config
	logger  *slog.Logger
}

// NewMPV creates a backend for the configured player command
func NewMPV(command string, args []string, logger *slog.Logger) *MPV {
	if logger == nil {
		logger = slog.Default()
	}
	if command == "" {
		command = defaultCommand
	}
	return &MPV{
		command: command,
		args:    args,
		logger:  logger,
	}
}

// buildArgs returns the mpv command line for url
func (m *MPV) buildArgs(socket, url string) []string {
	args := []string{
		"--no-video",
		"--no-terminal",
		"--idle=no",
		"--pause",
		"--keep-open=yes",
		"--input-ipc-server=" + socket,
	}
	args = append(args, m.args...)
	return append(args, "--", url)
}

// Open starts a paused player for url and connects to its IPC socket
func (m *MPV) Open(ctx context.Context, url string) (domain.MediaResource, error) {
	path, err := exec.LookPath(m.command)
	if err != nil {
		return nil, fmt.Errorf("%w: player %q not found", domain.ErrMediaUnavailable, m.command)
	}

	socket := filepath.Join(os.TempDir(), "storywave-"+uuid.NewString()+".sock")
	args := m.buildArgs(socket, url)

	m.logger.Info("launching player", "command", path, "args", args)

	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	conn, err := dialSocket(ctx, socket, exited)
	if err != nil {
		_ = cmd.Process.Kill()
		<-exited
		_ = os.Remove(socket)
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}

	res := newResource(conn, m.logger)
	res.onClose = func() {
		select {
		case <-exited:
		case <-time.After(quitTimeout):
			m.logger.Debug("player did not quit, killing", "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
			<-exited
		}
		_ = os.Remove(socket)
	}

	for _, c := range observeCommands() {
		if err := res.send(c...); err != nil {
			res.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
		}
	}
	return res, nil
}

// dialSocket waits for the player to create its IPC socket
func dialSocket(ctx context.Context, socket string, exited <-chan struct{}) (net.Conn, error) {
	deadline := time.NewTimer(dialTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(dialInterval)
	defer tick.Stop()

	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-exited:
			return nil, fmt.Errorf("player exited before opening %s", socket)
		case <-deadline.C:
			return nil, fmt.Errorf("timed out connecting to %s: %w", socket, err)
		case <-tick.C:
		}
	}
}

// resource is one running player. Commands are written without waiting for
// replies; events are read until the connection closes.
type resource struct {
	conn    io.ReadWriteCloser
	logger  *slog.Logger
	events  chan domain.MediaEvent
	done    chan struct{}
	onClose func()

	writeMu   sync.Mutex
	closeOnce sync.Once
	readDone  chan struct{}
}

func newResource(conn io.ReadWriteCloser, logger *slog.Logger) *resource {
	if logger == nil {
		logger = slog.Default()
	}
	r := &resource{
		conn:     conn,
		logger:   logger,
		events:   make(chan domain.MediaEvent, 32),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go r.readLoop()
	return r
}

func (r *resource) send(args ...any) error {
	select {
	case <-r.done:
		return errClosed
	default:
	}

	line, err := encodeCommand(args...)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if _, err := r.conn.Write(line); err != nil {
		return fmt.Errorf("failed to send %v: %w", args[0], err)
	}
	return nil
}

func (r *resource) Play() error {
	return r.send("set_property", "pause", false)
}

func (r *resource) Pause() error {
	return r.send("set_property", "pause", true)
}

func (r *resource) Seek(position float64) error {
	return r.send("seek", position, "absolute")
}

func (r *resource) SetRate(rate float64) error {
	return r.send("set_property", "speed", rate)
}

func (r *resource) Events() <-chan domain.MediaEvent {
	return r.events
}

// Close asks the player to quit and releases the connection. The events
// channel closes once the read loop has stopped.
func (r *resource) Close() error {
	r.closeOnce.Do(func() {
		_ = r.send("quit")
		close(r.done)
		if err := r.conn.Close(); err != nil {
			r.logger.Debug("failed to close player connection", "error", err)
		}
		<-r.readDone
		if r.onClose != nil {
			r.onClose()
		}
	})
	return nil
}

func (r *resource) readLoop() {
	defer close(r.readDone)
	defer close(r.events)

	var parser eventParser
	scanner := bufio.NewScanner(r.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ev, ok := parser.parse(scanner.Bytes())
		if !ok {
			continue
		}
		if !r.emit(ev) {
			return
		}
	}

	select {
	case <-r.done:
	default:
		// Connection dropped without Close: the player went away
		r.logger.Warn("player connection lost", "error", scanner.Err())
		r.emit(domain.MediaEvent{Kind: domain.MediaError, Err: domain.ErrMediaUnavailable})
	}
}

func (r *resource) emit(ev domain.MediaEvent) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}
