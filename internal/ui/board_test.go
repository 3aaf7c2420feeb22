package ui

import (
	"image"
	"image/color"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InkBoard/internal/input"
	"InkBoard/internal/state"
)

func TestCaptureGating(t *testing.T) {
	var c capture
	view := image.Rect(0, 0, 200, 100)
	toolbar := image.Rect(0, 0, 200, 40)

	assert.False(t, c.accepts(image.Pt(50, 50)), "closed capture takes nothing")
	assert.ErrorIs(t, c.SetCaptureRegion(nil, nil), errCaptureClosed)

	require.NoError(t, c.OpenCapture([]image.Rectangle{view}, []image.Rectangle{toolbar}))
	assert.True(t, c.accepts(image.Pt(50, 50)))
	assert.False(t, c.accepts(image.Pt(50, 10)))
	assert.False(t, c.accepts(image.Pt(250, 50)))

	c.SetCaptureEnabled(false)
	assert.False(t, c.accepts(image.Pt(50, 50)))
	c.SetCaptureEnabled(true)

	require.NoError(t, c.SetCaptureRegion([]image.Rectangle{view}, []image.Rectangle{image.Rect(0, 0, 40, 40)}))
	assert.True(t, c.accepts(image.Pt(50, 10)))

	require.NoError(t, c.CloseCapture())
	assert.False(t, c.accepts(image.Pt(50, 50)))
}

func TestStrokeStyle(t *testing.T) {
	var c capture
	c.SetStrokeStyle(state.Marker, 30)
	pen, width := c.style()
	assert.Equal(t, state.Marker, pen)
	assert.Equal(t, float32(30), width)
}

func TestToARGB(t *testing.T) {
	assert.Equal(t, uint32(0xffff0000), toARGB(color.NRGBA{R: 255, A: 255}))
	assert.Equal(t, uint32(0x80102030), toARGB(color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x80}))
}

func TestBoardTurnsDragIntoBatch(t *testing.T) {
	test.NewTempApp(t)
	b := NewBoardWidget(200, 100)
	require.NoError(t, b.OpenCapture([]image.Rectangle{b.Bounds()}, []image.Rectangle{image.Rect(0, 0, 200, 40)}))

	var got []input.Batch
	b.OnBatch = func(batch input.Batch) { got = append(got, batch) }

	// starts in the toolbar strip: ignored
	b.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(10, 10)}, Button: desktop.MouseButtonPrimary})
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(20, 60)}})
	b.MouseUp(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(20, 60)}, Button: desktop.MouseButtonPrimary})
	assert.Empty(t, got)

	b.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(10, 50)}, Button: desktop.MouseButtonPrimary})
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(30, 55)}})
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 70)}})
	b.MouseUp(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 70)}, Button: desktop.MouseButtonPrimary})
	b.DragEnd()

	require.Len(t, got, 1)
	require.Len(t, got[0], 3)
	assert.Equal(t, float32(10), got[0][0].X)
	assert.Equal(t, float32(70), got[0][2].Y)
	assert.Equal(t, float32(1), got[0][1].Pressure)
}

func TestBoardScroll(t *testing.T) {
	test.NewTempApp(t)
	b := NewBoardWidget(200, 100)
	var delta int
	b.OnScroll = func(d int) { delta = d }

	b.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.Delta{DY: -40}})
	assert.Equal(t, 40, delta)
}
