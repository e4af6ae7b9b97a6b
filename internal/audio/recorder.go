package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Recording describes a finished capture.
type Recording struct {
	Path     string
	Device   string
	Config   StreamConfig
	Frames   int64
	Duration time.Duration
}

// RecorderConfig wires a Recorder.
type RecorderConfig struct {
	Backend Backend
	Stop    StopSignal
	// DeviceID selects an input device by name; empty means the default.
	DeviceID string
	// Overrides replaces the device's negotiated values where non-zero.
	Overrides StreamConfig
	Logger    zerolog.Logger
}

// Recorder binds one input device per Record call and writes what it
// captures to a WAV file.
type Recorder struct {
	backend   Backend
	stop      StopSignal
	deviceID  string
	overrides StreamConfig
	log       zerolog.Logger
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	return &Recorder{
		backend:   cfg.Backend,
		stop:      cfg.Stop,
		deviceID:  cfg.DeviceID,
		overrides: cfg.Overrides,
		log:       cfg.Logger,
	}
}

// Record captures from the input device into path until the stop signal
// fires. Device, format and file errors are returned before the stream
// starts. Once the stream is open it is always stopped, closed and the file
// finalized, in that order, whatever happens while waiting.
func (r *Recorder) Record(ctx context.Context, path string) (rec Recording, err error) {
	dev, err := r.backend.InputDevice(r.deviceID)
	if err != nil {
		return rec, err
	}

	native, err := dev.Config()
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
	}
	cfg := native.withOverrides(r.overrides)
	if err := cfg.Validate(); err != nil {
		return rec, err
	}

	sink, err := NewSink(path, cfg, r.log)
	if err != nil {
		return rec, err
	}

	stream, err := dev.Open(cfg, sink)
	if err != nil {
		if ferr := sink.Finalize(); ferr != nil {
			r.log.Debug().Err(ferr).Msg("Finalize after failed open")
		}
		os.Remove(path)
		return rec, fmt.Errorf("failed to open input stream: %w", err)
	}

	var (
		started     time.Time
		startFailed bool
	)
	defer func() {
		if stopErr := stream.Stop(); stopErr != nil {
			r.log.Warn().Err(stopErr).Msg("Failed to stop input stream")
		}
		if closeErr := stream.Close(); closeErr != nil {
			r.log.Warn().Err(closeErr).Msg("Failed to close input stream")
		}
		if ferr := sink.Finalize(); ferr != nil {
			err = errors.Join(err, ferr)
		}
		if startFailed {
			os.Remove(path)
			return
		}

		rec = Recording{
			Path:   path,
			Device: dev.Name(),
			Config: cfg,
			Frames: sink.Frames(),
		}
		rec.Duration = time.Duration(rec.Frames) * time.Second / time.Duration(cfg.SampleRate)

		r.log.Info().
			Str("device", rec.Device).
			Dur("duration", rec.Duration).
			Dur("wall", time.Since(started)).
			Int64("frames", rec.Frames).
			Msg("Recording stopped")
	}()

	started = time.Now()
	if err := stream.Start(); err != nil {
		startFailed = true
		return rec, fmt.Errorf("failed to start input stream: %w", err)
	}

	r.log.Info().
		Str("device", dev.Name()).
		Int("sample_rate", cfg.SampleRate).
		Int("channels", cfg.Channels).
		Stringer("format", cfg.Format).
		Msg("Recording")

	if err := r.stop.Wait(ctx); err != nil {
		return rec, fmt.Errorf("waiting for stop signal: %w", err)
	}
	return rec, nil
}
