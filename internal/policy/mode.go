package policy

import "fmt"

// Mode is the operating mode of the injector. Modes are ordered from most
// to least restrictive; a mode is fixed for the lifetime of an engine
// instance and never mutated by validation calls.
type Mode string

const (
	ModeLocked      Mode = "locked"      // no write operations allowed
	ModeProduction  Mode = "production"  // confirmations required for critical messages
	ModeTesting     Mode = "testing"     // limited access, most dangerous addresses blocked
	ModeDevelopment Mode = "development" // full access with warnings
)

// ModeRank maps modes to a comparable integer, higher = more restrictive.
var ModeRank = map[Mode]int{
	ModeDevelopment: 0,
	ModeTesting:     1,
	ModeProduction:  2,
	ModeLocked:      3,
}

// Modes lists all operating modes, most restrictive first.
func Modes() []Mode {
	return []Mode{ModeLocked, ModeProduction, ModeTesting, ModeDevelopment}
}

// ParseMode maps a string to a Mode. Unknown values are an error, never a
// silent default.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocked, ModeProduction, ModeTesting, ModeDevelopment:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q: must be one of: locked, production, testing, development", s)
	}
}
