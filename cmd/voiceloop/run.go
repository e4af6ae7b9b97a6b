package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/petems/voiceloop/internal/audio"
	"github.com/petems/voiceloop/internal/config"
	"github.com/petems/voiceloop/internal/console"
	"github.com/petems/voiceloop/internal/conversation"
	"github.com/petems/voiceloop/internal/download"
	"github.com/petems/voiceloop/internal/inference"
	"github.com/petems/voiceloop/internal/inject"
	"github.com/petems/voiceloop/internal/logging"
	"github.com/petems/voiceloop/internal/metrics"
	"github.com/petems/voiceloop/internal/permissions"
	"github.com/petems/voiceloop/internal/speech"
	"github.com/petems/voiceloop/internal/transcribe"
)

const stopHint = "press Enter to stop"

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a conversation (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConversation(cmd, flags)
		},
	}
}

func runConversation(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if flags.verbose > 0 {
		level = "debug"
	}
	log := logging.NewWithLevel(level)

	// macOS records silence until microphone access is approved.
	if err := permissions.EnsureMicrophone(); err != nil {
		return err
	}

	d := download.New(nil, log)
	whisperModel, err := transcribe.EnsureModel(ctx, d, cfg.ModelsDir, cfg.Whisper.Model)
	if err != nil {
		return err
	}
	voiceModel, err := speech.EnsureVoice(ctx, d, cfg.ModelsDir, cfg.Speech.Voice)
	if err != nil {
		return err
	}

	format, err := audio.ParseSampleFormat(cfg.Audio.SampleFormat)
	if err != nil {
		return err
	}
	policy, err := conversation.ParseSpeechFailurePolicy(cfg.OnSpeechFailure)
	if err != nil {
		return err
	}

	backend, err := audio.NewPortAudio()
	if err != nil {
		return err
	}
	defer backend.Close()

	responder, err := inference.New(cfg.Inference, log)
	if err != nil {
		return err
	}

	printer := console.NewPrinter(cmd.OutOrStdout(), stopHint)

	pcfg := conversation.Config{
		Recorder: audio.NewRecorder(audio.RecorderConfig{
			Backend:  backend,
			Stop:     audio.NewLineStop(cmd.InOrStdin()),
			DeviceID: cfg.Audio.DeviceID,
			Overrides: audio.StreamConfig{
				SampleRate: cfg.Audio.SampleRate,
				Channels:   cfg.Audio.Channels,
				Format:     format,
			},
			Logger: log,
		}),
		Transcriber: transcribe.NewWhisper(transcribe.Config{
			Dir:      cfg.Whisper.Dir,
			Model:    whisperModel,
			Threads:  cfg.Whisper.Threads,
			Binaries: cfg.Whisper.Binaries,
			Logger:   log,
		}),
		Responder: responder,
		Synthesizer: speech.NewPiper(speech.Config{
			Binaries:        cfg.Speech.Binaries,
			Model:           voiceModel,
			LengthScale:     cfg.Speech.LengthScale,
			NoiseScale:      cfg.Speech.NoiseScale,
			NoiseW:          cfg.Speech.NoiseW,
			SentenceSilence: cfg.Speech.SentenceSilence,
			Logger:          log,
		}),
		Player:          audio.NewPlayer(log),
		Status:          printer,
		Metrics:         startMetrics(ctx, cfg.MetricsAddress, log),
		WorkDir:         cfg.WorkDir,
		ExitKeyword:     cfg.ExitKeyword,
		OnSpeechFailure: policy,
		Logger:          log,
	}
	if cfg.CopyReplies {
		pcfg.ReplySink = inject.NewClipboard(log)
	}

	pipeline, err := conversation.New(pcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to remove recordings")
		}
	}()

	printer.Welcome(cfg.Inference.Model, cfg.ExitKeyword)

	err = pipeline.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Interrupted")
		return nil
	}
	if err != nil {
		return fmt.Errorf("conversation ended: %w", err)
	}
	return nil
}

// startMetrics serves Prometheus metrics on addr until ctx is done. It
// returns nil, which disables collection, when addr is empty.
func startMetrics(ctx context.Context, addr string, log zerolog.Logger) *metrics.Metrics {
	if addr == "" {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	go func() {
		if err := metrics.Serve(ctx, addr, reg, log); err != nil {
			log.Error().Err(err).Str("address", addr).Msg("Metrics server failed")
		}
	}()
	return m
}
