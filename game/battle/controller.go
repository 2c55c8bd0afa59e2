package battle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kasuganosora/mvabs/game/memory"
)

// ErrInvalidMode is returned for a mode name that is not registered.
var ErrInvalidMode = errors.New("battle: invalid ai mode")

// Mode names an action-selection strategy.
type Mode string

const (
	ModeDoNothing   Mode = "do_nothing"
	ModeBasicAttack Mode = "basic_attack"
	ModeVariety     Mode = "variety"
	ModeFullForce   Mode = "full_force"
	ModeSupport     Mode = "support"

	DefaultMode = ModeVariety
)

var knownModes = map[Mode]bool{
	ModeDoNothing: true, ModeBasicAttack: true, ModeVariety: true,
	ModeFullForce: true, ModeSupport: true,
}

// ParseMode normalizes name ("Full Force", "full-force", "FULL_FORCE" all
// parse to ModeFullForce).
func ParseMode(name string) (Mode, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	m := Mode(n)
	if !knownModes[m] {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
	return m, nil
}

// Controller is the AI of a non-player combatant: its mode and what it has
// learned.
type Controller struct {
	// Key identifies the controller across spawns (the unit instance ID).
	Key    int64
	Memory *memory.Memory
	mode   Mode
}

// NewController creates a controller with the named mode. An invalid name
// falls back to DefaultMode and the parse error is returned alongside.
func NewController(key int64, mode string) (*Controller, error) {
	c := &Controller{Key: key, Memory: memory.New(), mode: DefaultMode}
	if mode == "" {
		return c, nil
	}
	return c, c.SetMode(mode)
}

func (c *Controller) Mode() Mode { return c.mode }

// SetMode swaps the strategy. On error the current mode is kept.
func (c *Controller) SetMode(name string) error {
	m, err := ParseMode(name)
	if err != nil {
		return err
	}
	c.mode = m
	return nil
}
