package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

const iconSize = 16

var (
	cupColor    = color.NRGBA{R: 139, G: 69, B: 19, A: 255}
	coffeeColor = color.NRGBA{R: 101, G: 67, B: 33, A: 255}
	steamColor  = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
)

// cupImage draws the 16x16 coffee cup.
func cupImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))

	fill := func(c color.NRGBA, x, y, w, h int) {
		draw.Draw(img, image.Rect(x, y, x+w, y+h), &image.Uniform{C: c}, image.Point{}, draw.Src)
	}

	// Cup
	fill(cupColor, 2, 6, 10, 8)
	fill(cupColor, 3, 5, 8, 1)
	fill(cupColor, 4, 4, 6, 1)
	// Handle
	fill(cupColor, 12, 8, 1, 4)
	fill(cupColor, 13, 9, 1, 2)
	// Coffee
	fill(coffeeColor, 3, 6, 8, 6)
	// Steam
	fill(steamColor, 5, 2, 1, 2)
	fill(steamColor, 7, 1, 1, 3)
	fill(steamColor, 9, 2, 1, 2)

	return img
}

// IconPNG returns the cup as PNG, which systray accepts on macOS and Linux.
func IconPNG() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, cupImage()); err != nil {
		// Encoding an in-memory NRGBA into a buffer does not fail.
		panic(err)
	}
	return buf.Bytes()
}

// iconDIB returns the icon resource data: a BITMAPINFOHEADER with doubled
// height, bottom-up BGRA pixels, then the AND mask. This is what
// CreateIconFromResourceEx takes and what an ICO entry points at.
func iconDIB() []byte {
	img := cupImage()

	const (
		headerSize = 40
		pixelBytes = iconSize * iconSize * 4
		maskStride = 4 // 16 bits padded to a DWORD
		maskBytes  = iconSize * maskStride
	)

	buf := new(bytes.Buffer)
	buf.Grow(headerSize + pixelBytes + maskBytes)

	header := struct {
		Size          uint32
		Width         int32
		Height        int32
		Planes        uint16
		BitCount      uint16
		Compression   uint32
		SizeImage     uint32
		XPelsPerMeter int32
		YPelsPerMeter int32
		ClrUsed       uint32
		ClrImportant  uint32
	}{
		Size:      headerSize,
		Width:     iconSize,
		Height:    iconSize * 2,
		Planes:    1,
		BitCount:  32,
		SizeImage: pixelBytes + maskBytes,
	}
	_ = binary.Write(buf, binary.LittleEndian, header)

	for y := iconSize - 1; y >= 0; y-- {
		for x := 0; x < iconSize; x++ {
			c := img.NRGBAAt(x, y)
			buf.Write([]byte{c.B, c.G, c.R, c.A})
		}
	}
	// All-zero AND mask: the alpha channel decides transparency.
	buf.Write(make([]byte, maskBytes))

	return buf.Bytes()
}
