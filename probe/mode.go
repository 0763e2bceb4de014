package probe

import (
	"github.com/cesanta/psdb/pdberr"
)

// leaveMode issues the CDB that leaves mode, exactly matching psdb's
// MODE_EXIT_CMD table (stlink.py).
func (p *Probe) leaveMode(mode Mode) error {
	switch mode {
	case ModeDFU:
		_, err := ExecWithRetry(p.tr, LeaveDFUMode(), DefaultRetries, DefaultDelay)
		return err
	case ModeDebug:
		_, err := ExecWithRetry(p.tr, LeaveDebugMode(), DefaultRetries, DefaultDelay)
		return err
	case ModeSWIM:
		_, err := ExecWithRetry(p.tr, LeaveSWIMMode(), DefaultRetries, DefaultDelay)
		return err
	default:
		// MASS/BOOTLOADER/UNKNOWN have no corresponding leave command.
		return nil
	}
}

// currentMode queries the probe's mode.
func (p *Probe) currentMode() (Mode, error) {
	return ExecWithRetry(p.tr, GetCurrentMode(), DefaultRetries, DefaultDelay)
}

// connectSWD drives the linear mode-manager transition from spec.md §4.2:
// query mode, leave it if it's one that needs leaving, SWDConnect, and
// require the result to be DEBUG.
func (p *Probe) connectSWD() error {
	mode, err := p.currentMode()
	if err != nil {
		return err
	}
	if mode == ModeDFU || mode == ModeDebug || mode == ModeSWIM {
		if err := p.leaveMode(mode); err != nil {
			return err
		}
	}

	if _, err := ExecWithRetry(p.tr, SWDConnect(), DefaultRetries, DefaultDelay); err != nil {
		return err
	}

	mode, err = p.currentMode()
	if err != nil {
		return err
	}
	if mode != ModeDebug {
		return pdberr.Errorf(pdberr.KindModeViolation, "probe did not reach DEBUG mode (stuck in %s)", mode)
	}
	p.Mode = mode
	return nil
}
