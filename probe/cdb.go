// Package probe implements the host side of the STLink vendor USB
// protocol: command descriptor blocks (CDBs), the transport that executes
// them with WAIT-retry semantics, mode management, and capability
// negotiation.
package probe

import (
	"fmt"

	"github.com/cesanta/psdb/pdberr"
)

func init() {
	pdberr.StatusName = StatusName
}

// Flags describes which phases a CDB's execution needs beyond the mandatory
// command phase, per spec.md §4.1/§3.
type Flags uint8

const (
	HasDataOutPhase Flags = 1 << iota
	HasDataInPhase
	HasEmbeddedStatus
	HasStatusPhase
)

// CDB is a 16-byte command descriptor block plus the metadata needed to
// drive its optional data and status phases and decode its response.
// T is the type the response decodes to; commands with no response use
// struct{}.
type CDB[T any] struct {
	Bytes   [16]byte
	Flags   Flags
	DataOut []byte
	RspLen  int
	Decode  func(rsp []byte) (T, error)
}

// Opcode returns the command's first byte, used for error messages and
// trace logging.
func (c *CDB[T]) Opcode() byte { return c.Bytes[0] }

// Status byte taxonomy (spec.md §6.2). Values match the ones OpenOCD-family
// tools (see other_examples/ce45148f_bbnote-gostlink__constants.go.go) use
// for the STLink debug/SWD status codes.
const (
	StatusDebugOK        byte = 0x80
	StatusDebugFault     byte = 0x81
	StatusSWDAPWait      byte = 0x10
	StatusSWDAPFault     byte = 0x11
	StatusSWDAPError     byte = 0x12
	StatusSWDDPWait      byte = 0x14
	StatusSWDDPFault     byte = 0x15
	StatusSWDDPError     byte = 0x16
	StatusFreqTooLow     byte = 0x08
)

// StatusName renders a status byte for log/error messages.
func StatusName(status byte) string {
	switch status {
	case StatusDebugOK:
		return "DEBUG_OK"
	case StatusDebugFault:
		return "DEBUG_FAULT"
	case StatusSWDAPWait:
		return "SWD_AP_WAIT"
	case StatusSWDAPFault:
		return "SWD_AP_FAULT"
	case StatusSWDAPError:
		return "SWD_AP_ERROR"
	case StatusSWDDPWait:
		return "SWD_DP_WAIT"
	case StatusSWDDPFault:
		return "SWD_DP_FAULT"
	case StatusSWDDPError:
		return "SWD_DP_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", status)
	}
}

// isWaitStatus reports whether status is one of the two WAIT codes that
// exec_with_retry is allowed to retry on (spec.md §4.1).
func isWaitStatus(status byte) bool {
	return status == StatusSWDAPWait || status == StatusSWDDPWait
}

// Mode is the probe's current operating mode (spec.md §4.2).
type Mode byte

const (
	ModeUnknown Mode = iota
	ModeDFU
	ModeMass
	ModeDebug
	ModeSWIM
	ModeBootloader
)

func (m Mode) String() string {
	switch m {
	case ModeDFU:
		return "DFU"
	case ModeMass:
		return "MASS"
	case ModeDebug:
		return "DEBUG"
	case ModeSWIM:
		return "SWIM"
	case ModeBootloader:
		return "BOOTLOADER"
	default:
		return "UNKNOWN"
	}
}

// wire-level device mode numbers (spec.md §6.2, byte-for-byte from
// other_examples/ce45148f_bbnote-gostlink__constants.go.go's deviceMode*
// table).
const (
	wireModeDFU        byte = 0x00
	wireModeMass       byte = 0x01
	wireModeDebug      byte = 0x02
	wireModeSWIM       byte = 0x03
	wireModeBootloader byte = 0x04
)

func modeFromWire(b byte) Mode {
	switch b {
	case wireModeDFU:
		return ModeDFU
	case wireModeMass:
		return ModeMass
	case wireModeDebug:
		return ModeDebug
	case wireModeSWIM:
		return ModeSWIM
	case wireModeBootloader:
		return ModeBootloader
	default:
		return ModeUnknown
	}
}
