// Package hardware drives the node's peripherals: the modem power key,
// the status LED, the mode switch and send button on GPIO lines, the
// ADS1115 sensor and the SSD1306 screen on I2C.
package hardware

import (
	"errors"
	"io"
	"log/slog"

	jujuerrors "github.com/juju/errors"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

// PinMap names the GPIO line offsets on the chip.
type PinMap struct {
	PowerKey int `hcl:"power_key"`
	LED      int `hcl:"led"`
	Switch   int `hcl:"switch"`
	Button   int `hcl:"button"`
}

type Config struct {
	Chip string `hcl:"chip"`
	Pins PinMap `hcl:"pins"`
	// I2CBus is the periph bus name, empty selects the first bus.
	I2CBus        string  `hcl:"i2c_bus"`
	SensorChannel int     `hcl:"sensor_channel"`
	SensorVolts   float64 `hcl:"sensor_volts"`
	Display       bool    `hcl:"display"`
}

// Board owns every opened peripheral.
type Board struct {
	PowerKey *OutputPin
	LED      *OutputPin
	Switch   *InputPin
	Button   *InputPin
	Sensor   *Potentiometer
	// Screen is nil when no display is configured or it failed to start.
	Screen *Screen

	chip *Chip
	bus  i2c.BusCloser
}

// OpenBoard opens every peripheral described by c. A missing screen is
// logged and tolerated; every other failure closes what was opened.
func OpenBoard(c Config, logger *slog.Logger) (board *Board, err error) {
	b := &Board{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if b.chip, err = OpenChip(c.Chip, "nbnode"); err != nil {
		return nil, err
	}
	if b.PowerKey, err = b.chip.Output(uint32(c.Pins.PowerKey), "modem-pwrkey"); err != nil {
		return nil, err
	}
	if b.LED, err = b.chip.Output(uint32(c.Pins.LED), "led"); err != nil {
		return nil, err
	}
	if b.Switch, err = b.chip.Input(uint32(c.Pins.Switch), "mode-switch"); err != nil {
		return nil, err
	}
	if b.Button, err = b.chip.Input(uint32(c.Pins.Button), "send-button"); err != nil {
		return nil, err
	}

	if _, err = host.Init(); err != nil {
		return nil, jujuerrors.Annotate(err, "periph/init")
	}
	if b.bus, err = i2creg.Open(c.I2CBus); err != nil {
		return nil, jujuerrors.Annotatef(err, "I2C open bus=%s", c.I2CBus)
	}

	volts := c.SensorVolts
	if volts <= 0 {
		volts = 3.3
	}
	maxVoltage := physic.ElectricPotential(volts * float64(physic.Volt))
	if b.Sensor, err = OpenPotentiometer(b.bus, c.SensorChannel, maxVoltage); err != nil {
		return nil, err
	}

	if c.Display {
		screen, serr := OpenScreen(b.bus)
		if serr != nil {
			logger.Warn("Display unavailable, continuing without it", "error", serr)
		} else {
			b.Screen = screen
		}
	}
	return b, nil
}

// Close releases every peripheral, returning all failures joined.
func (b *Board) Close() error {
	var errs []error
	release := func(opened bool, c io.Closer) {
		if opened {
			errs = append(errs, c.Close())
		}
	}
	release(b.Screen != nil, b.Screen)
	release(b.Sensor != nil, b.Sensor)
	release(b.Button != nil, b.Button)
	release(b.Switch != nil, b.Switch)
	release(b.LED != nil, b.LED)
	release(b.PowerKey != nil, b.PowerKey)
	release(b.bus != nil, b.bus)
	release(b.chip != nil, b.chip)
	return errors.Join(errs...)
}
