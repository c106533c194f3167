// Command panelsim renders a snapshot of the simulated control panel --
// the LED register, the seven-segment register, the switch register and
// the buzzer frequency -- to a PNG, so a panel snapshot taken mid-test can
// be inspected visually instead of only as raw register words.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[panelsim] error: %s\n", err.Error())
	os.Exit(1)
}

// snapshot is the JSON shape a test or the kernel's device registry dumps
// its simulated register state as.
type snapshot struct {
	LEDs        uint32 `json:"leds"`
	SevenSeg    uint32 `json:"seven_segment"`
	Switches    uint32 `json:"switches"`
	BuzzerHertz uint32 `json:"buzzer_hz"`
}

const (
	panelWidth  = 480
	panelHeight = 160
	ledCount    = 8
	switchCount = 8
)

func render(s snapshot, out string) error {
	dc := gg.NewContext(panelWidth, panelHeight)
	dc.SetColor(color.Black)
	dc.Clear()

	font, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return err
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: 14}))

	dc.SetColor(color.White)
	dc.DrawStringAnchored(fmt.Sprintf("seven-segment: 0x%02X", s.SevenSeg), 16, 20, 0, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("buzzer: %d Hz", s.BuzzerHertz), 16, 40, 0, 0.5)

	const (
		ledX0  = 16.0
		ledY   = 70.0
		ledGap = 24.0
		radius = 8.0
	)
	for i := 0; i < ledCount; i++ {
		on := s.LEDs&(1<<uint(i)) != 0
		if on {
			dc.SetRGB(1, 0.15, 0.1)
		} else {
			dc.SetRGB(0.2, 0.2, 0.2)
		}
		dc.DrawCircle(ledX0+float64(i)*ledGap, ledY, radius)
		dc.Fill()
	}

	const swY = 120.0
	for i := 0; i < switchCount; i++ {
		up := s.Switches&(1<<uint(i)) != 0
		if up {
			dc.SetRGB(0.2, 0.8, 0.3)
		} else {
			dc.SetRGB(0.5, 0.1, 0.1)
		}
		dc.DrawRectangle(ledX0+float64(i)*ledGap-6, swY-14, 12, 28)
		dc.Fill()
	}

	return dc.SavePNG(out)
}

func runTool() error {
	in := flag.String("in", "-", "path to a JSON register snapshot, or - for STDIN")
	out := flag.String("out", "panel.png", "path to write the rendered PNG to")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "panelsim: render a control-panel register snapshot to PNG\n\n")
		fmt.Fprint(os.Stderr, "Usage: panelsim [-in snapshot.json] [-out panel.png]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var r *os.File
	if *in == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var s snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return err
	}

	return render(s, *out)
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
