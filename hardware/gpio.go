package hardware

import (
	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
)

// Chip is an open GPIO character device such as /dev/gpiochip0.
type Chip struct {
	chip     gpio.Chiper
	consumer string
}

// OpenChip opens the GPIO chip at path. Lines requested from it are
// labelled with consumer unless a more specific label is given.
func OpenChip(path, consumer string) (*Chip, error) {
	chip, err := gpio.Open(path, consumer)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", path)
	}
	return &Chip{chip: chip, consumer: consumer}, nil
}

// NewChip wraps an already open chip.
func NewChip(chip gpio.Chiper, consumer string) *Chip {
	return &Chip{chip: chip, consumer: consumer}
}

func (c *Chip) Close() error {
	return errors.Annotate(c.chip.Close(), "gpio close chip")
}

// Output requests line as an output driven low.
func (c *Chip) Output(line uint32, label string) (*OutputPin, error) {
	if label == "" {
		label = c.consumer
	}
	lines, err := c.chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, label, line)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio output line=%d", line)
	}
	p := NewOutputPin(lines, line)
	if err := p.Low(); err != nil {
		lines.Close()
		return nil, err
	}
	return p, nil
}

// Input requests line as an input.
func (c *Chip) Input(line uint32, label string) (*InputPin, error) {
	if label == "" {
		label = c.consumer
	}
	lines, err := c.chip.OpenLines(gpio.GPIOHANDLE_REQUEST_INPUT, label, line)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio input line=%d", line)
	}
	return NewInputPin(lines, line), nil
}

// OutputPin drives a single output line. It serves as the modem power
// key and as the status LED.
type OutputPin struct {
	lines gpio.Lineser
	set   gpio.LineSetFunc
	line  uint32
}

func NewOutputPin(lines gpio.Lineser, line uint32) *OutputPin {
	return &OutputPin{lines: lines, set: lines.SetFunc(line), line: line}
}

func (p *OutputPin) High() error { return p.write(1) }
func (p *OutputPin) Low() error  { return p.write(0) }

func (p *OutputPin) write(v byte) error {
	p.set(v)
	return errors.Annotatef(p.lines.Flush(), "gpio set line=%d value=%d", p.line, v)
}

func (p *OutputPin) Close() error {
	return p.lines.Close()
}

// InputPin reads a single input line.
type InputPin struct {
	lines gpio.Lineser
	line  uint32
}

func NewInputPin(lines gpio.Lineser, line uint32) *InputPin {
	return &InputPin{lines: lines, line: line}
}

// Value returns the line level, 0 or 1. Switches and buttons are wired to
// ground with a pull-up, so 0 means closed.
func (p *InputPin) Value() (byte, error) {
	data, err := p.lines.Read()
	if err != nil {
		return 0, errors.Annotatef(err, "gpio read line=%d", p.line)
	}
	return data.Values[0], nil
}

func (p *InputPin) Close() error {
	return p.lines.Close()
}
