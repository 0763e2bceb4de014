package probe

import "github.com/cesanta/psdb/pdberr"

// GetVoltage returns the target supply voltage in volts, computed from the
// ADC pair per spec.md §6.2: vref = 2.4 * target_adc / vref_adc.
func (p *Probe) GetVoltage() (float64, error) {
	if !p.Features.Get(FeatureVoltage) {
		return 0, pdberr.Errorf(pdberr.KindModeViolation, "probe firmware does not support voltage sensing")
	}
	sample, err := Exec(p.tr, ReadVoltage(), DefaultTimeout)
	if err != nil {
		return 0, err
	}
	if sample.VrefADC == 0 {
		return 0, pdberr.Errorf(pdberr.KindRange, "vref_adc sample is zero")
	}
	return 2.4 * float64(sample.TargetADC) / float64(sample.VrefADC), nil
}
