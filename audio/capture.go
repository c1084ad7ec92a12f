package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrPermissionDenied means the capture device could not be acquired.
var ErrPermissionDenied = errors.New("microphone access denied")

// Config describes how the microphone should be captured.
type Config struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

// Session is a live capture stream of raw PCM audio.
type Session interface {
	io.Reader
	Stop() error
}

// Capture creates microphone capture sessions.
type Capture interface {
	Start(ctx context.Context, cfg Config) (Session, error)
}

// FFmpegCapture streams microphone PCM through an ffmpeg child process.
type FFmpegCapture struct{}

func NewFFmpegCapture() *FFmpegCapture {
	return &FFmpegCapture{}
}

func (c *FFmpegCapture) Start(ctx context.Context, cfg Config) (Session, error) {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// ffmpeg reports a device it cannot open by exiting immediately.
	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if isDeviceError(detail) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, detail)
		}
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdout:  stdout,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

func isDeviceError(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "device or resource busy") ||
		strings.Contains(lower, "no such device") ||
		strings.Contains(lower, "access denied")
}

type ffmpegSession struct {
	stdout io.ReadCloser

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err := <-s.waitErr:
			var exitErr *exec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				s.stopErr = err
			}
		case <-time.After(2 * time.Second):
			if s.process != nil {
				_ = s.process.Kill()
			}
			<-s.waitErr
		}

		_ = s.stdout.Close()
	})
	return s.stopErr
}
