// Package pdberr defines the error taxonomy shared by every layer of the
// probe/flash stack: transport failures, command-status failures, and the
// programmer-error classes raised by the memory and flash layers.
package pdberr

import (
	"errors"
	"fmt"

	jujuerrors "github.com/juju/errors"
)

// Kind classifies an error independently of its wrapped message, so callers
// can switch on failure category without string matching.
type Kind string

const (
	KindUSBIO          Kind = "usb-io"
	KindCmdStatus      Kind = "cmd-status"
	KindMaxRetries     Kind = "max-retries"
	KindModeViolation  Kind = "mode-violation"
	KindAlignment      Kind = "alignment"
	KindRange          Kind = "range"
	KindFlashError     Kind = "flash-error"
	KindVerifyMismatch Kind = "verify-mismatch"
	KindDVOverlap      Kind = "dv-overlap"
	KindFreqTooLow     Kind = "frequency-too-low"
)

// kindError carries a Kind alongside a formatted message. It is always
// wrapped with juju/errors so that call-site annotations accumulate as the
// error propagates up through probe -> mem -> flash.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// Kind reports the taxonomy Kind for classification via Is.
func (e *kindError) Kind() Kind { return e.kind }

// Errorf builds a new Kind-tagged error, traced at the call site.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return jujuerrors.Trace(&kindError{kind: kind, msg: fmt.Sprintf(format, args...)})
}

// CmdStatusError is the specific error raised when a CDB with an embedded
// status byte completes with anything other than DEBUG_OK. Status is
// preserved so exec_with_retry can recognize SWD_AP_WAIT/SWD_DP_WAIT.
type CmdStatusError struct {
	Status byte
	Opcode byte
}

// StatusName renders a status byte symbolically. probe.init sets this to
// its own StatusName table; pdberr cannot import probe (probe imports
// pdberr), so the table lives on the other side of this seam.
var StatusName = func(status byte) string { return fmt.Sprintf("0x%02x", status) }

func (e *CmdStatusError) Error() string {
	return fmt.Sprintf("cmd-status: opcode=0x%02x status=0x%02x (%s)", e.Opcode, e.Status, StatusName(e.Status))
}

// Kind satisfies the same interface kindError does, so pdberr.Is treats it
// uniformly as KindCmdStatus.
func (e *CmdStatusError) Kind() Kind { return KindCmdStatus }

type kinder interface{ Kind() Kind }

// Is reports whether err (or anything it wraps) carries the given Kind.
// juju/errors.Trace/Annotatef wrap the cause in their own *errors.Err,
// which predates Go's errors.Unwrap convention, so both unwrap paths are
// tried: the stdlib chain (works for any stdlib-style wrapping this
// package's own callers might add) and juju's own Cause() chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ke, ok := err.(kinder); ok {
			return ke.Kind() == kind
		}
		var ke kinder
		if errors.As(err, &ke) {
			return ke.Kind() == kind
		}
		cause := jujuerrors.Cause(err)
		if cause == err {
			return false
		}
		err = cause
	}
	return false
}

// Wrap annotates err with additional context while preserving its Kind for
// Is(), mirroring the teacher's errors.Annotatef idiom used throughout
// mos/flash.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return jujuerrors.Annotatef(err, format, args...)
}
