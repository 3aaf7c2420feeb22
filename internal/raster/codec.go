package raster

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultThumbWidth is the thumbnail width; height follows the aspect ratio.
	DefaultThumbWidth = 500
	// ThumbQuality is the JPEG quality used for thumbnails.
	ThumbQuality = 50
)

// EncodeFull writes img losslessly.
func EncodeFull(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}

// EncodeThumb downscales img to width and writes it lossily.
func EncodeThumb(w io.Writer, img image.Image, width int) error {
	return jpeg.Encode(w, Thumbnail(img, width), &jpeg.Options{Quality: ThumbQuality})
}

// Thumbnail scales img to the given width, keeping the aspect ratio. Pixels
// are sampled without filtering, matching the crisp look of pen strokes.
func Thumbnail(img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	if width <= 0 {
		width = DefaultThumbWidth
	}
	height := max(1, int(float64(width)*float64(b.Dy())/float64(b.Dx())))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Decode reads a cached raster. PNG, JPEG and WebP are accepted.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}
