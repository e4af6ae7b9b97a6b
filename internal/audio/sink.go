package audio

import (
	"fmt"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

const (
	bitsPerSample = 16
	wavFormatPCM  = 1
)

// Sink persists samples from a single producer as a 16-bit PCM WAV file.
//
// The open writer sits in a take-once cell: writes find it under the lock,
// Finalize removes it. Once removed, writes are discarded, so a driver
// callback that fires after Stop cannot touch a closed file.
type Sink struct {
	path string
	cfg  StreamConfig
	log  zerolog.Logger

	mu       sync.Mutex
	w        *wavWriter
	frames   int64
	writeErr error
}

type wavWriter struct {
	file *os.File
	enc  *wav.Encoder
	buf  *goaudio.IntBuffer
}

// NewSink creates path and prepares a WAV encoder using cfg's rate and
// channel count.
func NewSink(path string, cfg StreamConfig, log zerolog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Sink{
		path: path,
		cfg:  cfg,
		log:  log,
		w: &wavWriter{
			file: f,
			enc:  wav.NewEncoder(f, cfg.SampleRate, bitsPerSample, cfg.Channels, wavFormatPCM),
			buf: &goaudio.IntBuffer{
				Format:         &goaudio.Format{NumChannels: cfg.Channels, SampleRate: cfg.SampleRate},
				SourceBitDepth: bitsPerSample,
			},
		},
	}, nil
}

// Path is the destination file.
func (s *Sink) Path() string { return s.path }

// Config is the stream configuration the file was created with.
func (s *Sink) Config() StreamConfig { return s.cfg }

// WriteInt16 appends integer samples unchanged.
func (s *Sink) WriteInt16(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return
	}
	data := s.w.data(len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}
	s.appendLocked()
}

// WriteFloat32 converts [-1, 1] float samples to 16-bit integers and
// appends them.
func (s *Sink) WriteFloat32(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return
	}
	data := s.w.data(len(samples))
	for i, v := range samples {
		data[i] = int(Float32ToInt16(v))
	}
	s.appendLocked()
}

func (w *wavWriter) data(n int) []int {
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
	return w.buf.Data
}

// appendLocked writes the staged buffer. Errors cannot leave the driver
// callback, so the first one is kept and logged; capture continues best
// effort and the caller sees a short file.
func (s *Sink) appendLocked() {
	if err := s.w.enc.Write(s.w.buf); err != nil {
		if s.writeErr == nil {
			s.writeErr = err
			s.log.Warn().Err(err).Str("path", s.path).Msg("Dropping samples after write error")
		}
		return
	}
	s.frames += int64(len(s.w.buf.Data) / s.cfg.Channels)
}

// Finalize closes the container, writing its length fields. Only the first
// call does any work; later calls return nil.
func (s *Sink) Finalize() error {
	w := s.take()
	if w == nil {
		return nil
	}

	// The encoder only emits its header on the first Write. An empty
	// recording still has to be a readable file.
	if s.Frames() == 0 {
		w.buf.Data = w.buf.Data[:0]
		if err := w.enc.Write(w.buf); err != nil {
			w.file.Close()
			return fmt.Errorf("failed to write WAV header: %w", err)
		}
	}

	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}

	s.log.Debug().
		Str("path", s.path).
		Int64("frames", s.Frames()).
		Msg("Recording finalized")
	return nil
}

func (s *Sink) take() *wavWriter {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.w
	s.w = nil
	return w
}

// Finalized reports whether Finalize has taken the writer.
func (s *Sink) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w == nil
}

// Frames is the number of frames persisted so far.
func (s *Sink) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// WriteErr is the first write error seen, if any.
func (s *Sink) WriteErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErr
}

// Float32ToInt16 scales a [-1, 1] sample to the int16 range. Out of range
// input is clamped rather than wrapped; NaN becomes silence.
func Float32ToInt16(v float32) int16 {
	if v != v {
		return 0
	}
	scaled := float64(v) * math.MaxInt16
	switch {
	case scaled >= math.MaxInt16:
		return math.MaxInt16
	case scaled <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(scaled)
	}
}
