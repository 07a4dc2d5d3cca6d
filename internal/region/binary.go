package region

import (
	"image"

	"github.com/disintegration/imaging"
)

// binaryImage is a thresholded screenshot. White pixels are foreground.
type binaryImage struct {
	w, h      int
	white     []bool
	threshold uint8

	// integral[(y)*(w+1)+x] counts white pixels in [0,x)x[0,y).
	integral []int
}

// binarize converts img to grayscale, blurs it and applies Otsu's threshold.
func binarize(img image.Image, sigma float64) *binaryImage {
	gray := imaging.Grayscale(img)
	if sigma > 0 {
		gray = imaging.Blur(gray, sigma)
	}

	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	lum := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w*4]
		for x := 0; x < w; x++ {
			lum[y*w+x] = row[x*4]
		}
	}

	t := otsuThreshold(lum)
	b := &binaryImage{w: w, h: h, white: make([]bool, w*h), threshold: t}
	for i, v := range lum {
		b.white[i] = v > t
	}
	b.buildIntegral()
	return b
}

// otsuThreshold returns the gray level that maximizes between-class variance.
// Pixels strictly above the returned level belong to the bright class.
func otsuThreshold(lum []uint8) uint8 {
	var hist [256]int
	for _, v := range lum {
		hist[v]++
	}

	total := len(lum)
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var (
		sumBg    float64
		weightBg int
		best     float64
		level    uint8
	)
	for t := 0; t < 256; t++ {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sumAll - sumBg) / float64(weightFg)
		between := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > best {
			best = between
			level = uint8(t)
		}
	}
	if best == 0 {
		// Single gray level: nothing is strictly brighter than it.
		for i, n := range hist {
			if n > 0 {
				return uint8(i)
			}
		}
	}
	return level
}

func (b *binaryImage) buildIntegral() {
	stride := b.w + 1
	b.integral = make([]int, stride*(b.h+1))
	for y := 0; y < b.h; y++ {
		rowSum := 0
		for x := 0; x < b.w; x++ {
			if b.white[y*b.w+x] {
				rowSum++
			}
			b.integral[(y+1)*stride+x+1] = b.integral[y*stride+x+1] + rowSum
		}
	}
}

// countWhite returns the number of white pixels inside r.
func (b *binaryImage) countWhite(r image.Rectangle) int {
	r = r.Intersect(image.Rect(0, 0, b.w, b.h))
	if r.Empty() {
		return 0
	}
	stride := b.w + 1
	return b.integral[r.Max.Y*stride+r.Max.X] -
		b.integral[r.Min.Y*stride+r.Max.X] -
		b.integral[r.Max.Y*stride+r.Min.X] +
		b.integral[r.Min.Y*stride+r.Min.X]
}

// components returns the bounding box of every 8-connected white component.
// Only the outer extent matters, so holes inside a component are ignored.
func (b *binaryImage) components() []image.Rectangle {
	seen := make([]bool, len(b.white))
	var boxes []image.Rectangle
	var stack []int

	for start, isWhite := range b.white {
		if !isWhite || seen[start] {
			continue
		}

		minX, minY := b.w, b.h
		maxX, maxY := -1, -1
		seen[start] = true
		stack = append(stack[:0], start)

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%b.w, i/b.w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= b.h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= b.w || (dx == 0 && dy == 0) {
						continue
					}
					j := ny*b.w + nx
					if b.white[j] && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}

		boxes = append(boxes, image.Rect(minX, minY, maxX+1, maxY+1))
	}
	return boxes
}
