package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petems/voiceloop/internal/audio"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Long:  "List the capture devices; use a name as audio.device_id in the config.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pa, err := audio.NewPortAudio()
			if err != nil {
				return err
			}
			defer pa.Close()

			devices, err := pa.ListDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				return audio.ErrNoInputDevice
			}
			for _, d := range devices {
				marker := " "
				if d.Default {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, d.Name)
			}
			return nil
		},
	}
}
