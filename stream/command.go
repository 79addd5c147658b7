package stream

import (
	"encoding/json"
	"fmt"
)

// CommandType names an operation an admin surface can ask of an engine.
type CommandType string

const (
	ApplySettings CommandType = "applySettings"
	ResetQueue    CommandType = "resetQueue"
	RefreshAssets CommandType = "refreshAssets"
	Resize        CommandType = "resize"
	Start         CommandType = "start"
	Stop          CommandType = "stop"
	LoadPreset    CommandType = "loadPreset"
)

// Command is the message accepted on the command topic and from the HTTP
// API.
type Command struct {
	Type     CommandType     `json:"type"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Width    int             `json:"width,omitempty"`
	Height   int             `json:"height,omitempty"`
	Preset   string          `json:"preset,omitempty"`
}

// ParseCommand decodes and validates a command payload.
func ParseCommand(payload []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return c, fmt.Errorf("invalid command: %w", err)
	}
	return c, c.Validate()
}

// Validate checks that the command carries what its type needs.
func (c Command) Validate() error {
	switch c.Type {
	case ApplySettings:
		if len(c.Settings) == 0 {
			return fmt.Errorf("%s: missing settings", c.Type)
		}
	case Resize:
		if c.Width <= 0 || c.Height <= 0 || c.Width > MaxViewport || c.Height > MaxViewport {
			return fmt.Errorf("%s: invalid size %dx%d", c.Type, c.Width, c.Height)
		}
	case LoadPreset:
		if c.Preset == "" {
			return fmt.Errorf("%s: missing preset", c.Type)
		}
	case ResetQueue, RefreshAssets, Start, Stop:
	default:
		return fmt.Errorf("unknown command type %q", c.Type)
	}
	return nil
}
