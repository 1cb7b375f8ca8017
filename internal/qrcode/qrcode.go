// Package qrcode renders check-in payloads as PNG QR codes.
package qrcode

import (
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

// ContentType of the images produced by Encode.
const ContentType = "image/png"

// DefaultSize is the image edge length in pixels.
const DefaultSize = 256

// Encoder turns payload text into an image.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

// PNG encodes with high error correction so codes survive phone screens.
type PNG struct {
	Size int
}

// NewPNG returns a PNG encoder of DefaultSize.
func NewPNG() PNG {
	return PNG{Size: DefaultSize}
}

func (p PNG) Encode(payload string) ([]byte, error) {
	size := p.Size
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qr.Encode(payload, qr.Highest, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
