package frames

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// IsSameImage reports whether a and b have the same size and identical
// pixels. Comparison is exact; a single differing pixel makes them different.
func IsSameImage(a, b image.Image) bool {
	if a == nil || b == nil {
		return false
	}
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Size() != bb.Size() {
		return false
	}

	switch pa := a.(type) {
	case *image.RGBA:
		if pb, ok := b.(*image.RGBA); ok {
			return samePix(pa.Pix, pa.Stride, pb.Pix, pb.Stride, ab.Dx()*4, ab.Dy())
		}
	case *image.NRGBA:
		if pb, ok := b.(*image.NRGBA); ok {
			return samePix(pa.Pix, pa.Stride, pb.Pix, pb.Stride, ab.Dx()*4, ab.Dy())
		}
	}

	// Mixed or uncommon types: normalize both.
	na, nb := imaging.Clone(a), imaging.Clone(b)
	return samePix(na.Pix, na.Stride, nb.Pix, nb.Stride, ab.Dx()*4, ab.Dy())
}

func samePix(a []byte, strideA int, b []byte, strideB int, rowBytes, rows int) bool {
	for y := 0; y < rows; y++ {
		if !bytes.Equal(a[y*strideA:y*strideA+rowBytes], b[y*strideB:y*strideB+rowBytes]) {
			return false
		}
	}
	return true
}
