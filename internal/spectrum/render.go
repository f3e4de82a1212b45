package spectrum

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// bar glyphs from silent to full scale
var barGlyphs = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// gradientSteps quantizes the two-stop gradient so styles can be prebuilt.
const gradientSteps = 16

// BarConfig styles the terminal bar renderer.
type BarConfig struct {
	// Width is the number of columns the bars span.
	Width int

	// BottomColor and TopColor are the two gradient stops (hex). A bar's
	// color runs from BottomColor at silence to TopColor at full scale.
	BottomColor string
	TopColor    string
}

// DefaultBarConfig returns the default display styling.
func DefaultBarConfig() BarConfig {
	return BarConfig{
		Width:       64,
		BottomColor: "#005f87",
		TopColor:    "#5fd7ff",
	}
}

// BarRenderer draws magnitude frames as proportionally scaled bars spanning
// the display width, left to right, colored along a two-stop gradient. Each
// render overwrites the current terminal line in place.
type BarRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	width  int
	styles [gradientSteps]lipgloss.Style
}

// NewBarRenderer creates a renderer writing to out.
func NewBarRenderer(out io.Writer, cfg BarConfig) *BarRenderer {
	if cfg.Width <= 0 {
		cfg.Width = 64
	}
	if cfg.BottomColor == "" {
		cfg.BottomColor = DefaultBarConfig().BottomColor
	}
	if cfg.TopColor == "" {
		cfg.TopColor = DefaultBarConfig().TopColor
	}

	r := &BarRenderer{out: out, width: cfg.Width}
	for i := 0; i < gradientSteps; i++ {
		color := lerpHex(cfg.BottomColor, cfg.TopColor, float64(i)/float64(gradientSteps-1))
		r.styles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
	return r
}

// Render draws one frame, fitting the magnitude samples to the display
// width.
func (r *BarRenderer) Render(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var line strings.Builder
	line.WriteByte('\r')

	for col := 0; col < r.width; col++ {
		v := sampleColumn(frame, col, r.width)

		glyph := barGlyphs[int(v)*(len(barGlyphs)-1)/255]
		step := int(v) * (gradientSteps - 1) / 255
		line.WriteString(r.styles[step].Render(string(glyph)))
	}

	fmt.Fprint(r.out, line.String())
}

// Clear blanks the rendered line back to a neutral background.
func (r *BarRenderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, "\r"+strings.Repeat(" ", r.width)+"\r")
}

// sampleColumn maps display column col of width to a magnitude, averaging
// when the frame is denser than the display.
func sampleColumn(frame []byte, col, width int) byte {
	if len(frame) == 0 {
		return 0
	}
	lo := col * len(frame) / width
	hi := (col + 1) * len(frame) / width
	if hi <= lo {
		hi = lo + 1
	}
	if hi > len(frame) {
		hi = len(frame)
	}
	if lo >= len(frame) {
		return 0
	}

	var sum int
	for _, v := range frame[lo:hi] {
		sum += int(v)
	}
	return byte(sum / (hi - lo))
}

// lerpHex interpolates between two #rrggbb colors.
func lerpHex(from, to string, t float64) string {
	fr, fg, fb := parseHex(from)
	tr, tg, tb := parseHex(to)
	lerp := func(a, b int) int { return a + int(t*float64(b-a)) }
	return fmt.Sprintf("#%02x%02x%02x", lerp(fr, tr), lerp(fg, tg), lerp(fb, tb))
}

func parseHex(s string) (r, g, b int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0
	}
	pr, _ := strconv.ParseInt(s[0:2], 16, 32)
	pg, _ := strconv.ParseInt(s[2:4], 16, 32)
	pb, _ := strconv.ParseInt(s[4:6], 16, 32)
	return int(pr), int(pg), int(pb)
}
