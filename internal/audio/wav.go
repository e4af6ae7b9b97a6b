package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files that are not readable PCM WAV.
var ErrInvalidWAV = errors.New("invalid WAV file")

// Clip is a decoded WAV file as interleaved 16-bit samples.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames is the number of sample frames in the clip.
func (c Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// ReadWAV decodes a PCM WAV file, narrowing or widening samples to 16 bits.
func ReadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Clip{}, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %s: %v", ErrInvalidWAV, path, err)
	}

	samples := make([]int16, len(buf.Data))
	shift := int(d.BitDepth) - bitsPerSample
	for i, v := range buf.Data {
		switch {
		case d.BitDepth == 8:
			samples[i] = int16((v - 128) << 8)
		case shift > 0:
			samples[i] = int16(v >> shift)
		default:
			samples[i] = int16(v)
		}
	}

	return Clip{
		Samples:    samples,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}, nil
}

// WAVDuration reads the headers of path and reports the length of its data
// chunk.
func WAVDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	if err := d.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidWAV, path, err)
	}

	frameSize := int64(d.NumChans) * int64(d.BitDepth) / 8
	if frameSize == 0 || d.SampleRate == 0 {
		return 0, fmt.Errorf("%w: %s: empty format", ErrInvalidWAV, path)
	}
	frames := d.PCMLen() / frameSize
	return time.Duration(frames) * time.Second / time.Duration(d.SampleRate), nil
}
