package probe

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"zappem.net/pub/debug/xxd"

	"github.com/cesanta/psdb/pdberr"
)

const (
	// DefaultTimeout is the per-phase USB timeout exec_cdb uses unless the
	// caller overrides it (spec.md §4.1).
	DefaultTimeout = 1 * time.Second
	// DefaultRetries/DefaultDelay are exec_with_retry's defaults (spec.md
	// §4.1).
	DefaultRetries = 10
	DefaultDelay   = 100 * time.Millisecond
)

// Transport executes CDBs against a single STLink probe. All operations on
// a probe are strictly ordered (spec.md §5): mu serializes every command so
// commands never interleave across goroutines sharing one Transport.
type Transport struct {
	mu  sync.Mutex
	usb *usbDevice
}

func newTransport(usb *usbDevice) *Transport {
	return &Transport{usb: usb}
}

// Exec executes a CDB to completion: command phase, optional data-out,
// optional data-in (with embedded-status check), optional status phase.
// This is the Go equivalent of psdb's STLink._exec_cdb.
func Exec[T any](tr *Transport, cmd CDB[T], timeout time.Duration) (T, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var zero T

	if glog.V(3) {
		glog.V(3).Info("CDB out:")
		xxd.Print(0, cmd.Bytes[:])
	}
	n, err := tr.usb.write(cmd.Bytes[:], timeout)
	if err != nil {
		return zero, err
	}
	if n != len(cmd.Bytes) {
		return zero, pdberr.Errorf(pdberr.KindUSBIO, "short CDB write: %d/%d", n, len(cmd.Bytes))
	}

	if cmd.Flags&HasDataOutPhase != 0 {
		n, err := tr.usb.write(cmd.DataOut, timeout)
		if err != nil {
			return zero, err
		}
		if n != len(cmd.DataOut) {
			return zero, pdberr.Errorf(pdberr.KindUSBIO, "short data-out write: %d/%d", n, len(cmd.DataOut))
		}
	}

	var result T
	if cmd.Flags&HasDataInPhase != 0 {
		rsp := make([]byte, cmd.RspLen)
		n, err := tr.usb.read(rsp, timeout)
		if err != nil {
			return zero, err
		}
		if n != len(rsp) {
			return zero, pdberr.Errorf(pdberr.KindUSBIO, "short data-in read: %d/%d", n, len(rsp))
		}
		if glog.V(3) {
			glog.V(3).Info("CDB in:")
			xxd.Print(0, rsp)
		}
		if cmd.Flags&HasEmbeddedStatus != 0 && rsp[0] != StatusDebugOK {
			return zero, &pdberr.CmdStatusError{Status: rsp[0], Opcode: cmd.Opcode()}
		}
		if cmd.Decode != nil {
			result, err = cmd.Decode(rsp)
			if err != nil {
				return zero, err
			}
		}
	}

	if cmd.Flags&HasStatusPhase != 0 {
		if err := tr.checkXferStatus(timeout); err != nil {
			return zero, err
		}
	}

	glog.V(2).Infof("exec opcode=0x%02x flags=0x%x ok", cmd.Opcode(), cmd.Flags)
	return result, nil
}

// checkXferStatus issues the "last transfer status" query and translates
// the status byte via the shared status table (spec.md §4.1 item 4).
func (tr *Transport) checkXferStatus(timeout time.Duration) error {
	cmd := LastXFERStatus12()
	// LastXFERStatus12 is itself a plain data-in transaction; execute its
	// phases directly rather than recursing through Exec, which would
	// re-acquire tr.mu (already held by the caller).
	n, err := tr.usb.write(cmd.Bytes[:], timeout)
	if err != nil {
		return err
	}
	if n != len(cmd.Bytes) {
		return pdberr.Errorf(pdberr.KindUSBIO, "short status-query write: %d/%d", n, len(cmd.Bytes))
	}
	rsp := make([]byte, cmd.RspLen)
	n, err = tr.usb.read(rsp, timeout)
	if err != nil {
		return err
	}
	if n != len(rsp) {
		return pdberr.Errorf(pdberr.KindUSBIO, "short status-query read: %d/%d", n, len(rsp))
	}
	status := rsp[0]
	if status != StatusDebugOK {
		return &pdberr.CmdStatusError{Status: status, Opcode: cmd.Opcode()}
	}
	return nil
}

// ExecWithRetry executes cmd, retrying only on SWD_AP_WAIT/SWD_DP_WAIT
// status, sleeping delay between attempts (spec.md §4.1). All other errors
// propagate immediately.
func ExecWithRetry[T any](tr *Transport, cmd CDB[T], retries int, delay time.Duration) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		result, err := Exec(tr, cmd, DefaultTimeout)
		if err == nil {
			return result, nil
		}
		var cse *pdberr.CmdStatusError
		if se, ok := err.(*pdberr.CmdStatusError); ok {
			cse = se
		}
		if cse == nil || !isWaitStatus(cse.Status) {
			return zero, err
		}
		lastErr = err
		glog.V(1).Infof("retry %d/%d: %v", attempt+1, retries, err)
		time.Sleep(delay)
	}
	return zero, pdberr.Wrap(pdberr.Errorf(pdberr.KindMaxRetries, "max retries exceeded"), "last error: %v", lastErr)
}
