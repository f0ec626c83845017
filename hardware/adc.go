package hardware

import (
	"github.com/juju/errors"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/experimental/devices/ads1x15"
)

// adsFullScale is the largest positive single-ended ADS1115 reading.
const adsFullScale = 1<<15 - 1

var singleEnded = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// Potentiometer reads the sensor knob through an ADS1115 and reports it on
// a 0..65535 scale.
type Potentiometer struct {
	pin ads1x15.PinADC
}

// OpenPotentiometer configures channel of the ADS1115 at the default
// address on bus. maxVoltage is the supply of the potentiometer.
func OpenPotentiometer(bus i2c.Bus, channel int, maxVoltage physic.ElectricPotential) (*Potentiometer, error) {
	dev, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		return nil, errors.Annotate(err, "ads1115 init")
	}
	if channel < 0 || channel >= len(singleEnded) {
		return nil, errors.NotValidf("ads1115 channel %d", channel)
	}
	pin, err := dev.PinForChannel(singleEnded[channel], maxVoltage, 8*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, errors.Annotatef(err, "ads1115 channel=%d", channel)
	}
	return &Potentiometer{pin: pin}, nil
}

// Read returns the current position.
func (p *Potentiometer) Read() (uint16, error) {
	r, err := p.pin.Read()
	if err != nil {
		return 0, errors.Annotate(err, "ads1115 read")
	}
	return Scale16(r.Raw), nil
}

func (p *Potentiometer) Close() error {
	return p.pin.Halt()
}

// Scale16 maps a single-ended ADS1115 sample onto 0..65535. Negative
// samples caused by offset noise clamp to 0.
func Scale16(raw int32) uint16 {
	switch {
	case raw <= 0:
		return 0
	case raw >= adsFullScale:
		return 65535
	default:
		return uint16(int64(raw) * 65535 / adsFullScale)
	}
}
