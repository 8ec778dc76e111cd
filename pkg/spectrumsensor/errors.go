package spectrumsensor

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange    = errors.New("out of range")
	ErrInvalidConfig = errors.New("invalid device config")
	ErrNoConfig      = errors.New("no matching device config")
	ErrBusy          = errors.New("acquisition in progress")
	ErrNoAck         = errors.New("no acknowledgment from device")
)

// ProtocolError is returned when the device rejects a command with an
// "error: ..." line. Message holds the whole line as received.
type ProtocolError struct {
	Command string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("device reported %q", e.Message)
	}
	return fmt.Sprintf("command %q: device reported %q", e.Command, e.Message)
}
