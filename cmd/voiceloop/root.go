package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petems/voiceloop/internal/console"
)

type rootFlags struct {
	configPath string
	verbose    int
	color      string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "voiceloop",
		Short: "Talk to a local language model",
		Long: `voiceloop records what you say, transcribes it with whisper.cpp, sends the
conversation to an Ollama or OpenAI-compatible model and speaks the reply
with piper.`,
		Example: `  voiceloop
  voiceloop --config ./voiceloop.yaml -v
  VOICELOOP_MODEL=mistral:latest voiceloop`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch flags.color {
			case "always":
				console.SetColor(true)
			case "never":
				console.SetColor(false)
			case "auto":
			default:
				return fmt.Errorf("invalid --color %q, want auto, always or never", flags.color)
			}
			return nil
		},
		// With no subcommand, start a conversation.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversation(cmd, &flags)
		},
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the config file (default: platform config dir)")
	cmd.PersistentFlags().CountVarP(&flags.verbose, "verbose", "v", "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.color, "color", "auto", "Colorize output: auto, always or never")

	cmd.AddCommand(newRunCmd(&flags))
	cmd.AddCommand(newConfigCmd(&flags))
	cmd.AddCommand(newDevicesCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
