package probe

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"

	"github.com/cesanta/psdb/pdberr"
)

// STLink V3E USB identifiers and bulk endpoint numbers (spec.md §6.1).
const (
	VendorSTLink   gousb.ID = 0x0483
	ProductSTLinkV3E gousb.ID = 0x374E

	epIn  = 0x81
	epOut = 0x01
)

const (
	defaultWriteTimeout = 1 * time.Second
	defaultReadTimeout  = 1 * time.Second
)

// usbDevice is the thin wrapper around a gousb bulk device: raw read/write
// to the IN/OUT endpoints with a timeout, nothing more. Grounded on
// mos/flash/common/usb.go's OpenUSBDevice (device enumeration by VID/PID)
// and other_examples/2ec76f7e_bbnote-gostlink__usb.go.go's usbWrite/usbRead
// (context-based per-call timeout on each bulk transfer).
type usbDevice struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	inEP   *gousb.InEndpoint
	outEP  *gousb.OutEndpoint
}

// openUSB finds and claims the first STLink matching vid/pid (and serial,
// if non-empty), exactly as OpenUSBDevice does for mos's supported MCU
// boards.
func openUSB(vid, pid gousb.ID, serial string) (*usbDevice, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(dd *gousb.DeviceDesc) bool {
		return dd.Vendor == vid && dd.Product == pid
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, pdberr.Wrap(pdberr.Errorf(pdberr.KindUSBIO, "enumerate failed"), "%v", err)
	}
	var dev *gousb.Device
	for _, d := range devs {
		if dev != nil {
			d.Close()
			continue
		}
		sn, _ := d.SerialNumber()
		if serial == "" || sn == serial {
			dev = d
		} else {
			d.Close()
		}
	}
	if dev == nil {
		ctx.Close()
		return nil, pdberr.Errorf(pdberr.KindUSBIO, "no STLink found (vid=%s pid=%s serial=%q)", vid, pid, serial)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, errors.Annotatef(err, "failed to select USB config")
	}
	iface, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, errors.Annotatef(err, "failed to claim USB interface")
	}
	inEP, err := iface.InEndpoint(epIn & 0x0f)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, errors.Annotatef(err, "failed to open IN endpoint")
	}
	outEP, err := iface.OutEndpoint(epOut & 0x0f)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, errors.Annotatef(err, "failed to open OUT endpoint")
	}

	return &usbDevice{ctx: ctx, dev: dev, cfg: cfg, iface: iface, inEP: inEP, outEP: outEP}, nil
}

// Close releases the USB handles. The probe owns them; dropping a probe
// closes its handles (spec.md §5, Resource discipline).
func (u *usbDevice) Close() {
	u.iface.Close()
	u.cfg.Close()
	u.dev.Close()
	u.ctx.Close()
}

// write performs one bulk OUT transfer with the given timeout and returns
// the byte count; Exec checks that the full buffer went out (spec.md §4.1
// item 1/2).
func (u *usbDevice) write(buf []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := u.outEP.WriteContext(ctx, buf)
	if err != nil {
		return n, pdberr.Wrap(pdberr.Errorf(pdberr.KindUSBIO, "bulk OUT failed"), "%v", err)
	}
	glog.V(3).Infof("-> EP%02x %d bytes", u.outEP.Desc.Number, n)
	return n, nil
}

// read performs one bulk IN transfer of exactly len(buf) bytes.
func (u *usbDevice) read(buf []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := u.inEP.ReadContext(ctx, buf)
	if err != nil {
		return n, pdberr.Wrap(pdberr.Errorf(pdberr.KindUSBIO, "bulk IN failed"), "%v", err)
	}
	glog.V(3).Infof("<- EP%02x %d bytes", u.inEP.Desc.Number, n)
	return n, nil
}
