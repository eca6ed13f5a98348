package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey indicates a required profile key is absent or empty
	ErrMissingKey = errors.New("missing required key")
	// ErrInvalidOverlayType indicates an overlay value conflicts with the base value type
	ErrInvalidOverlayType = errors.New("invalid overlay type")
)

// ErrorKind classifies a ConfigError.
type ErrorKind int

const (
	MissingKey ErrorKind = iota + 1
	InvalidOverlayType
)

func (k ErrorKind) String() string {
	switch k {
	case MissingKey:
		return "MissingKey"
	case InvalidOverlayType:
		return "InvalidOverlayType"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ConfigError is returned when a profile cannot be resolved. Key is the dotted
// path of the offending entry.
type ConfigError struct {
	Kind ErrorKind
	Key  string
	Base string
	Got  string
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case InvalidOverlayType:
		return fmt.Sprintf("config error: %s: overlay value for %q is %s, base value is %s", e.Kind, e.Key, e.Got, e.Base)
	default:
		return fmt.Sprintf("config error: %s: %q", e.Kind, e.Key)
	}
}

func (e *ConfigError) Unwrap() error {
	switch e.Kind {
	case MissingKey:
		return ErrMissingKey
	case InvalidOverlayType:
		return ErrInvalidOverlayType
	default:
		return nil
	}
}
