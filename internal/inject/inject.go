package inject

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
)

// ErrUnsupported is returned when no clipboard utility is available,
// e.g. Linux without xclip, xsel or wl-clipboard.
var ErrUnsupported = errors.New("clipboard not supported on this system")

// Clipboard copies each assistant reply to the system clipboard.
type Clipboard struct {
	write       func(string) error
	unsupported bool
	log         zerolog.Logger
}

func NewClipboard(log zerolog.Logger) *Clipboard {
	return &Clipboard{
		write:       clipboard.WriteAll,
		unsupported: clipboard.Unsupported,
		log:         log,
	}
}

// Reply writes text to the clipboard.
func (c *Clipboard) Reply(text string) error {
	if c.unsupported {
		return ErrUnsupported
	}
	if err := c.write(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	c.log.Debug().Int("chars", len(text)).Msg("Copied reply to clipboard")
	return nil
}
