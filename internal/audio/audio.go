package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoInputDevice is returned when no capture device can be bound.
	ErrNoInputDevice = errors.New("no input device available")
	// ErrNoOutputDevice is returned when no playback device can be bound.
	ErrNoOutputDevice = errors.New("no output device available")
	// ErrUnsupportedFormat is returned for native sample encodings other
	// than 16-bit integer and 32-bit float.
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// SampleFormat is the native encoding a device delivers samples in.
type SampleFormat int

const (
	FormatOther SampleFormat = iota
	FormatInt16
	FormatFloat32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatInt16:
		return "int16"
	case FormatFloat32:
		return "float32"
	default:
		return "other"
	}
}

// ParseSampleFormat maps a config value to a SampleFormat. The empty string
// means "use the device default" and parses as FormatOther with no error.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FormatOther, nil
	case "int16", "i16":
		return FormatInt16, nil
	case "float32", "f32":
		return FormatFloat32, nil
	default:
		return FormatOther, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// StreamConfig describes one capture stream. It is fixed for the lifetime
// of a recording.
type StreamConfig struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

// Validate rejects configurations a Sink cannot persist.
func (c StreamConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", c.Channels)
	}
	if c.Format != FormatInt16 && c.Format != FormatFloat32 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, c.Format)
	}
	return nil
}

// withOverrides returns c with every non-zero field of o applied.
func (c StreamConfig) withOverrides(o StreamConfig) StreamConfig {
	if o.SampleRate > 0 {
		c.SampleRate = o.SampleRate
	}
	if o.Channels > 0 {
		c.Channels = o.Channels
	}
	if o.Format != FormatOther {
		c.Format = o.Format
	}
	return c
}

// Backend is the audio host: it resolves input devices.
type Backend interface {
	// InputDevice returns the device named id, or the default input device
	// when id is empty. It fails with ErrNoInputDevice.
	InputDevice(id string) (InputDevice, error)
	ListDevices() ([]AudioDevice, error)
}

// InputDevice is a capture device that can open streams into a Sink.
type InputDevice interface {
	Name() string
	// Config is the device's negotiated default configuration.
	Config() (StreamConfig, error)
	// Open builds a stream whose callback forwards every sample block to
	// sink. The stream is not started.
	Open(cfg StreamConfig, sink *Sink) (Stream, error)
}

// Stream is an opened hardware stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Playback plays a finished audio container and blocks until it is done.
type Playback interface {
	Play(ctx context.Context, path string) error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}
