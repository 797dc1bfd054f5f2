// Package termview shows frames from the software device in a terminal.
// Every cell holds two vertically stacked pixels drawn as an upper half
// block, foreground for the top pixel and background for the bottom one.
package termview

import (
	"image"
	"image/color"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
)

const halfBlock = '▀'

// Event is something the viewer's user asked for
type Event int

const (
	EventQuit Event = iota
	EventResize
	EventKey
)

// View draws images onto a tcell screen
type View struct {
	screen tcell.Screen
	events chan Event
	keys   chan rune
}

// New opens the terminal
func New() (*View, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize terminal")
	}
	if err := screen.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize terminal")
	}
	return NewWithScreen(screen), nil
}

// NewWithScreen wraps an initialised screen
func NewWithScreen(screen tcell.Screen) *View {
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	v := &View{
		screen: screen,
		events: make(chan Event, 8),
		keys:   make(chan rune, 8),
	}
	go v.handleInput()
	return v
}

// Events delivers quit and resize requests
func (v *View) Events() <-chan Event {
	return v.events
}

// Keys delivers printable keys the user pressed
func (v *View) Keys() <-chan rune {
	return v.keys
}

func (v *View) handleInput() {
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			close(v.events)
			close(v.keys)
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
				v.send(EventQuit)
			case ev.Key() == tcell.KeyRune:
				select {
				case v.keys <- ev.Rune():
				default:
				}
				v.send(EventKey)
			}
		case *tcell.EventResize:
			v.screen.Sync()
			v.send(EventResize)
		}
	}
}

func (v *View) send(e Event) {
	select {
	case v.events <- e:
	default:
	}
}

// Size returns the pixel resolution the terminal can show
func (v *View) Size() (int, int) {
	w, h := v.screen.Size()
	return w, h * 2
}

// Draw shows img scaled down to fit the terminal when needed
func (v *View) Draw(img *image.RGBA) {
	sw, sh := v.screen.Size()
	cols, rows := Fit(img.Bounds().Dx(), img.Bounds().Dy(), sw, sh)
	v.screen.Clear()
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			top, bottom := CellColors(img, cx, cy, cols, rows)
			style := tcell.StyleDefault.Foreground(rgb(top)).Background(rgb(bottom))
			v.screen.SetContent(cx, cy, halfBlock, nil, style)
		}
	}
	v.screen.Show()
}

// Close restores the terminal
func (v *View) Close() {
	v.screen.Fini()
}

// Fit returns how many cells a w x h image covers on a cols x rows
// terminal, keeping the aspect ratio when it has to shrink.
func Fit(w, h, cols, rows int) (int, int) {
	if w <= 0 || h <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	ch := (h + 1) / 2
	if w <= cols && ch <= rows {
		return w, ch
	}
	// pixels per cell horizontally vs per half cell vertically
	if w*rows*2 > h*cols {
		return cols, max(1, (h*cols/w+1)/2)
	}
	return max(1, w*rows*2/h), rows
}

// CellColors samples the two pixels shown by cell (cx, cy) of a cols x rows
// grid laid over img.
func CellColors(img *image.RGBA, cx, cy, cols, rows int) (color.RGBA, color.RGBA) {
	b := img.Bounds()
	sx := b.Min.X + cx*b.Dx()/cols
	sy0 := b.Min.Y + (2*cy)*b.Dy()/(rows*2)
	sy1 := b.Min.Y + (2*cy+1)*b.Dy()/(rows*2)
	return img.RGBAAt(sx, sy0), img.RGBAAt(sx, sy1)
}

func rgb(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
