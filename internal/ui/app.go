package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Window is the host window around one board.
type Window struct {
	app    fyne.App
	win    fyne.Window
	status *widget.Label
}

// NewWindow lays out toolbar, board and status line. The board sits in the
// top-left corner so view coordinates match widget coordinates.
func NewWindow(title string, board *BoardWidget, toolbar fyne.CanvasObject) *Window {
	myApp := app.NewWithID("dev.inkboard")
	myWindow := myApp.NewWindow(title)

	status := widget.NewLabel("Ready")
	content := container.NewBorder(nil, status, nil, nil,
		container.NewStack(container.NewWithoutLayout(board), container.NewVBox(toolbar)))
	board.Resize(board.MinSize())

	size := board.MinSize()
	myWindow.Resize(fyne.NewSize(size.Width, size.Height+status.MinSize().Height))
	myWindow.SetContent(content)
	return &Window{app: myApp, win: myWindow, status: status}
}

// SetStatus updates the status line from any goroutine.
func (w *Window) SetStatus(text string) {
	fyne.Do(func() { w.status.SetText(text) })
}

// OnClose runs fn when the window is closing, before it goes away.
func (w *Window) OnClose(fn func()) {
	w.win.SetCloseIntercept(func() {
		fn()
		w.win.Close()
	})
}

// Run shows the window and blocks until the app quits.
func (w *Window) Run() {
	w.win.ShowAndRun()
}
