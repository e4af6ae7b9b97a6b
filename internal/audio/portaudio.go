package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/petems/voiceloop/internal/stage"
)

// maxCaptureChannels caps the negotiated channel count; interfaces with
// many inputs still record a stereo pair at most.
const maxCaptureChannels = 2

// PortAudio is the Backend for real hardware.
type PortAudio struct{}

// NewPortAudio initializes the PortAudio library. Close must be called to
// release it.
func NewPortAudio() (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudio{}, nil
}

func (p *PortAudio) InputDevice(id string) (InputDevice, error) {
	if id == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
		if device == nil || device.MaxInputChannels < 1 {
			return nil, ErrNoInputDevice
		}
		return &portAudioInput{info: device}, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to enumerate devices: %v", ErrNoInputDevice, err)
	}
	for _, d := range devices {
		if d.Name == id && d.MaxInputChannels > 0 {
			return &portAudioInput{info: d}, nil
		}
	}
	return nil, fmt.Errorf("%w: device not found: %s", ErrNoInputDevice, id)
}

func (p *PortAudio) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}

type portAudioInput struct {
	info *portaudio.DeviceInfo
}

func (d *portAudioInput) Name() string { return d.info.Name }

// Config reports the device's default rate and channel count. PortAudio
// converts to whichever sample type the callback asks for, so float32 is
// the negotiated default.
func (d *portAudioInput) Config() (StreamConfig, error) {
	channels := min(d.info.MaxInputChannels, maxCaptureChannels)
	if channels < 1 {
		return StreamConfig{}, fmt.Errorf("device %s has no input channels", d.info.Name)
	}
	return StreamConfig{
		SampleRate: int(d.info.DefaultSampleRate),
		Channels:   channels,
		Format:     FormatFloat32,
	}, nil
}

func (d *portAudioInput) Open(cfg StreamConfig, sink *Sink) (Stream, error) {
	var callback any
	switch cfg.Format {
	case FormatInt16:
		callback = func(in []int16) { sink.WriteInt16(in) }
	case FormatFloat32:
		callback = func(in []float32) { sink.WriteFloat32(in) }
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   d.info,
			Channels: cfg.Channels,
			Latency:  d.info.DefaultHighInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, callback)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

const playbackFramesPerBuffer = 1024

// Player plays WAV files on the default output device.
type Player struct {
	log zerolog.Logger
}

func NewPlayer(log zerolog.Logger) *Player {
	return &Player{log: log}
}

// Play blocks until path has been played or ctx is done.
func (p *Player) Play(ctx context.Context, path string) error {
	clip, err := ReadWAV(path)
	if err != nil {
		return stage.Errorf(stage.Playback, stage.ErrPlaybackFailed, "%w", err)
	}

	device, err := portaudio.DefaultOutputDevice()
	if err != nil || device == nil {
		return stage.Errorf(stage.Playback, stage.ErrPlaybackFailed, "%w: %v", ErrNoOutputDevice, err)
	}

	buffer := make([]int16, playbackFramesPerBuffer*clip.Channels)
	params := portaudio.HighLatencyParameters(nil, device)
	params.Output.Channels = clip.Channels
	params.SampleRate = float64(clip.SampleRate)
	params.FramesPerBuffer = playbackFramesPerBuffer

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		return stage.Errorf(stage.Playback, stage.ErrPlaybackFailed, "failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return stage.Errorf(stage.Playback, stage.ErrPlaybackFailed, "failed to start output stream: %w", err)
	}
	defer stream.Stop()

	p.log.Debug().
		Str("path", path).
		Str("device", device.Name).
		Dur("duration", clip.Duration()).
		Msg("Playing")

	for off := 0; off < len(clip.Samples); off += len(buffer) {
		if err := ctx.Err(); err != nil {
			return stage.Errorf(stage.Playback, stage.ErrPlaybackFailed, "interrupted: %w", err)
		}
		n := copy(buffer, clip.Samples[off:])
		clear(buffer[n:])
		if err := stream.Write(); err != nil {
			return stage.Errorf(stage.Playback, stage.ErrPlaybackFailed, "write to output stream: %w", err)
		}
	}
	return nil
}
