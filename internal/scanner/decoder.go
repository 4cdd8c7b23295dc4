package scanner

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
)

// QRDecoder decodes QR codes with gozxing.
type QRDecoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]any
}

func NewQRDecoder() *QRDecoder {
	return &QRDecoder{
		reader: zxqr.NewQRCodeReader(),
		hints:  map[gozxing.DecodeHintType]any{gozxing.DecodeHintType_TRY_HARDER: true},
	}
}

// Decode looks for a code inside box. An empty box decodes the whole image.
func (d *QRDecoder) Decode(img image.Image, box image.Rectangle) (string, error) {
	if !box.Empty() {
		img = crop(img, box)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to prepare frame: %w", err)
	}
	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return result.GetText(), nil
}

// crop copies box into a new image anchored at the origin.
func crop(img image.Image, box image.Rectangle) image.Image {
	box = box.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(dst, dst.Bounds(), img, box.Min, draw.Src)
	return dst
}
