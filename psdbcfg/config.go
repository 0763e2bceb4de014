// Package psdbcfg is an optional, INI-backed source of defaults (probe
// serial number to match, SWD clock, timeout, retry policy). The core APIs
// never require a Config -- callers pass these values directly as function
// arguments (probe.Open's serial, ExecWithRetry's retries and delay), much
// as mos/flash/stm32.FlashOpts and mos/flash/esp.FlashOpts are passed by
// the mos CLI rather than read from a global. This package exists for callers
// that do want an on-disk default, such as a future CLI front-end.
package psdbcfg

import (
	"time"

	"gopkg.in/ini.v1"

	"github.com/cesanta/psdb/pdberr"
)

// Config holds the defaults a caller may want to load once at startup.
type Config struct {
	SerialNumber string
	SWDFreqHz    uint32
	Timeout      time.Duration
	Retries      int
	RetryDelay   time.Duration
}

// Default returns the hard-coded defaults used when no config file is
// present, matching probe.DefaultTimeout/DefaultRetries/DefaultDelay
// (duplicated here rather than imported, so this ambient package never
// needs to depend on the probe package it configures).
func Default() Config {
	return Config{
		SWDFreqHz:  4000000,
		Timeout:    1 * time.Second,
		Retries:    10,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Load reads path as an INI file under a [probe] section, filling in any
// key not present from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := ini.Load(path)
	if err != nil {
		return cfg, pdberr.Wrap(err, "failed to load config %q", path)
	}
	sec := f.Section("probe")
	cfg.SerialNumber = sec.Key("serial").MustString("")
	cfg.SWDFreqHz = uint32(sec.Key("swd_freq_hz").MustUint(uint(cfg.SWDFreqHz)))
	cfg.Timeout = time.Duration(sec.Key("timeout_ms").MustInt(int(cfg.Timeout/time.Millisecond))) * time.Millisecond
	cfg.Retries = sec.Key("retries").MustInt(cfg.Retries)
	cfg.RetryDelay = time.Duration(sec.Key("retry_delay_ms").MustInt(int(cfg.RetryDelay/time.Millisecond))) * time.Millisecond
	return cfg, nil
}
