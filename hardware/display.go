package hardware

import (
	"image"
	"image/draw"

	"github.com/juju/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/devices/ssd1306"
	"periph.io/x/periph/devices/ssd1306/image1bit"
)

// Row baselines of the header, body and footer lines on a 64 pixel high
// panel.
var rows = [3]int{12, 36, 60}

// Screen is a 128x64 SSD1306 OLED on I2C showing three text lines.
type Screen struct {
	dev *ssd1306.Dev
	img *image1bit.VerticalLSB
}

func OpenScreen(bus i2c.Bus) (*Screen, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, errors.Annotate(err, "ssd1306 init")
	}
	return &Screen{dev: dev, img: image1bit.NewVerticalLSB(dev.Bounds())}, nil
}

// Show replaces the whole screen with the three lines.
func (s *Screen) Show(header, body, footer string) error {
	Render(s.img, header, body, footer)
	return errors.Annotate(s.dev.Draw(s.dev.Bounds(), s.img, image.Point{}), "ssd1306 draw")
}

func (s *Screen) Close() error {
	return s.dev.Halt()
}

// Render clears img and draws the lines with a fixed 7x13 font. Text
// wider than the panel is clipped.
func Render(img draw.Image, header, body, footer string) {
	draw.Draw(img, img.Bounds(), &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, text := range []string{header, body, footer} {
		d.Dot = fixed.P(0, rows[i]-basicfont.Face7x13.Descent)
		d.DrawString(text)
	}
}
