package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"InkBoard/internal/editor"
	"InkBoard/internal/state"
)

// --- Custom Widget for Color Swatches ---
type colorSwatch struct {
	widget.BaseWidget
	Color    color.NRGBA
	OnTapped func(color.NRGBA)
}

func newColorSwatch(c color.NRGBA, tapped func(color.NRGBA)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(32, 32))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

// toARGB packs c as 0xAARRGGBB.
func toARGB(c color.NRGBA) uint32 {
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

var palette = []color.NRGBA{
	{A: 255},                 // Black
	{R: 255, A: 255},         // Red
	{G: 160, A: 255},         // Green
	{B: 255, A: 255},         // Blue
	{R: 255, G: 212, A: 255}, // Yellow
}

// --- The Main Toolbar ---

// NewToolbar builds the editor controls. The menu button toggles the tools
// open and closed; everything else writes to ed.
func NewToolbar(ed *editor.State) fyne.CanvasObject {
	modes := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() { ed.SetMode(editor.Draw) }),
		widget.NewToolbarAction(theme.DeleteIcon(), func() { ed.SetMode(editor.Erase) }),
		widget.NewToolbarAction(theme.ContentCutIcon(), func() { ed.SetMode(editor.Select) }),
	)

	pens := make([]string, 0, 4)
	for _, p := range []state.PenType{state.Ballpen, state.Fountain, state.Marker, state.Pencil} {
		pens = append(pens, p.String())
	}
	current, setting := ed.Pen()

	strokeSlider := widget.NewSlider(1.0, 50.0)
	strokeSlider.SetValue(float64(setting.StrokeSize))
	strokeSlider.OnChanged = func(val float64) {
		pen, s := ed.Pen()
		s.StrokeSize = float32(val)
		ed.SetPenSetting(pen, s)
	}
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), strokeSlider)

	penSelect := widget.NewSelect(pens, func(name string) {
		pen, err := state.ParsePen(name)
		if err != nil {
			return
		}
		ed.SetPen(pen)
		_, s := ed.Pen()
		strokeSlider.SetValue(float64(s.StrokeSize))
	})
	penSelect.SetSelected(current.String())

	onColorTapped := func(c color.NRGBA) {
		pen, s := ed.Pen()
		s.Color = toARGB(c)
		ed.SetPenSetting(pen, s)
	}
	colorBox := container.NewHBox()
	for _, c := range palette {
		colorBox.Add(newColorSwatch(c, onColorTapped))
	}

	ink := widget.NewCheck("Ink", ed.SetDrawing)
	ink.SetChecked(ed.IsDrawing())

	tools := container.NewHBox(
		widget.NewLabel("Tool:"),
		modes,
		widget.NewSeparator(),
		widget.NewLabel("Pen:"),
		penSelect,
		widget.NewSeparator(),
		widget.NewLabel("Color:"),
		colorBox,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		ink,
	)
	if !ed.IsToolbarOpen() {
		tools.Hide()
	}

	ed.Subscribe(editor.ObserverFuncs{
		Toolbar: func(open bool) {
			fyne.Do(func() {
				if open {
					tools.Show()
				} else {
					tools.Hide()
				}
			})
		},
	})

	toggle := widget.NewButtonWithIcon("", theme.MenuIcon(), func() {
		ed.SetToolbarOpen(!ed.IsToolbarOpen())
	})

	return container.NewHBox(toggle, tools, layout.NewSpacer())
}
