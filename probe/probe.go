package probe

import (
	"github.com/boljen/go-bitmap"
	"github.com/google/gousb"

	"github.com/cesanta/psdb/pdberr"
)

// Probe is a single open STLink debug probe: a transport bound to one USB
// device, its negotiated capabilities, and the SWD state connectSWD leaves
// it in. Grounded on original_source/psdb/probes/stlink/stlink.py's STLink
// class, which bundles exactly this data (the USB handle, version/feature
// fields, dpidr) behind one object.
type Probe struct {
	usb *usbDevice
	tr  *Transport

	Mode Mode

	VerSTLink, VerJTAG, VerSWIM, VerMSD, VerBridge byte
	Features                                       bitmap.Bitmap
	MaxRW8                                         int
	SWDFreqsKHz                                    []uint32

	// DPIDR is the SWD Debug Port identification register read during
	// Connect, identifying the target's debug architecture.
	DPIDR uint32
}

// Open claims the first STLink V3E matching serial (or any, if serial is
// empty) and negotiates its capabilities, but does not yet talk SWD --
// call Connect for that. Mirrors stlink_v3e.py's constructor plus its
// immediate _usb_version() probe.
func Open(serial string) (*Probe, error) {
	usb, err := openUSB(VendorSTLink, ProductSTLinkV3E, serial)
	if err != nil {
		return nil, err
	}
	p := &Probe{usb: usb, tr: newTransport(usb)}
	if err := p.identify(); err != nil {
		usb.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the probe's USB handles (spec.md §5, Resource discipline).
func (p *Probe) Close() {
	p.usb.Close()
}

// Connect drives the probe into SWD debug mode and reads the target's
// DPIDR, exactly as stlink.py's connect() does: self._swd_connect();
// self.dpidr = self._read_dpidr().
func (p *Probe) Connect() error {
	if err := p.connectSWD(); err != nil {
		return err
	}
	dpidr, err := ExecWithRetry(p.tr, ReadIDCodes(), DefaultRetries, DefaultDelay)
	if err != nil {
		return err
	}
	p.DPIDR = dpidr
	return nil
}

// SerialNumber returns the probe's USB serial number, used to tell multiple
// attached probes apart.
func (p *Probe) SerialNumber() (string, error) {
	sn, err := p.usb.dev.SerialNumber()
	if err != nil {
		return "", pdberr.Wrap(err, "failed to read serial number")
	}
	return sn, nil
}

// requireFeature returns a KindModeViolation error if the probe's firmware
// lacks the given feature bit, otherwise nil.
func (p *Probe) requireFeature(bit int, what string) error {
	if !p.Features.Get(bit) {
		return pdberr.Errorf(pdberr.KindModeViolation, "probe firmware does not support %s", what)
	}
	return nil
}

// ReadAPReg/WriteAPReg/OpenAPReg wrap the corresponding CDB builders with
// retry, for the accessport package's non-offloaded register access path
// (spec.md §4.4).
func (p *Probe) ReadAPReg(apsel byte, addr uint32) (uint32, error) {
	if err := p.requireFeature(FeatureAP, "AP register access"); err != nil {
		return 0, err
	}
	return ExecWithRetry(p.tr, ReadAPReg(apsel, addr), DefaultRetries, DefaultDelay)
}

func (p *Probe) WriteAPReg(apsel byte, addr, value uint32) error {
	if err := p.requireFeature(FeatureAP, "AP register access"); err != nil {
		return err
	}
	_, err := ExecWithRetry(p.tr, WriteAPReg(apsel, addr, value), DefaultRetries, DefaultDelay)
	return err
}

// OpenAPReg prepares apsel for register access, required on firmware that
// advertises FeatureOpenAP before any ReadAPReg/WriteAPReg on that AP.
func (p *Probe) OpenAPReg(apsel byte) error {
	if !p.Features.Get(FeatureOpenAP) {
		return nil
	}
	_, err := ExecWithRetry(p.tr, OpenAP(apsel), DefaultRetries, DefaultDelay)
	return err
}

// SetSRST drives (assert=true) or releases the target's reset line.
func (p *Probe) SetSRST(assert bool) error {
	_, err := ExecWithRetry(p.tr, SetSRST(assert), DefaultRetries, DefaultDelay)
	return err
}

// Read32/Write32 perform a single 32-bit aligned AHB access directly
// through the probe's offloaded memory commands (spec.md §4.4's
// offload-eligible path).
func (p *Probe) Read32(addr uint32, apNum int) (uint32, error) {
	return ExecWithRetry(p.tr, Read32(addr, apNum), DefaultRetries, DefaultDelay)
}

func (p *Probe) Write32(v, addr uint32, apNum int) error {
	_, err := ExecWithRetry(p.tr, Write32(v, addr, apNum), DefaultRetries, DefaultDelay)
	return err
}

// BulkRead8/16/32 and BulkWrite8/16/32 perform offloaded multi-unit AHB
// transfers. The mem package is responsible for splitting a request across
// the 1KiB TAR auto-increment window and the probe's MaxRW8 chunk limit
// before calling these (spec.md §4.4).
func (p *Probe) BulkRead8(addr uint32, n int, apNum int) ([]byte, error) {
	return ExecWithRetry(p.tr, BulkRead8(addr, n, apNum), DefaultRetries, DefaultDelay)
}

func (p *Probe) BulkRead16(addr uint32, n int, apNum int) ([]byte, error) {
	if err := p.requireFeature(FeatureBulkRead16, "16-bit bulk read"); err != nil {
		return nil, err
	}
	return ExecWithRetry(p.tr, BulkRead16(addr, n, apNum), DefaultRetries, DefaultDelay)
}

func (p *Probe) BulkRead32(addr uint32, n int, apNum int) ([]byte, error) {
	return ExecWithRetry(p.tr, BulkRead32(addr, n, apNum), DefaultRetries, DefaultDelay)
}

func (p *Probe) BulkWrite8(data []byte, addr uint32, apNum int) error {
	_, err := ExecWithRetry(p.tr, BulkWrite8(data, addr, apNum), DefaultRetries, DefaultDelay)
	return err
}

func (p *Probe) BulkWrite16(data []byte, addr uint32, apNum int) error {
	if err := p.requireFeature(FeatureBulkWrite16, "16-bit bulk write"); err != nil {
		return err
	}
	_, err := ExecWithRetry(p.tr, BulkWrite16(data, addr, apNum), DefaultRetries, DefaultDelay)
	return err
}

func (p *Probe) BulkWrite32(data []byte, addr uint32, apNum int) error {
	_, err := ExecWithRetry(p.tr, BulkWrite32(data, addr, apNum), DefaultRetries, DefaultDelay)
	return err
}

// GetVendorProduct reports the USB VID/PID this probe was opened with, for
// callers that enumerate multiple probe families (spec.md §6.1).
func GetVendorProduct() (gousb.ID, gousb.ID) {
	return VendorSTLink, ProductSTLinkV3E
}
