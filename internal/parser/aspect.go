package parser

import (
	"math"
	"strconv"
	"strings"

	"dreambot/internal/domain"
)

const (
	minAspect = 0.25
	maxAspect = 4.0
)

// AspectRatio derives a width and height from a "W:H" string. The result keeps
// roughly target*target pixels, and each side is floored to a multiple of
// stride.
func AspectRatio(value string, target, stride int) (int, int, error) {
	left, right, ok := strings.Cut(value, ":")
	if !ok {
		return 0, 0, domain.Invalid("AR must be in the form W:H")
	}
	w, errW := strconv.ParseFloat(strings.TrimSpace(left), 64)
	h, errH := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return 0, 0, domain.Invalid("AR must be in the form W:H")
	}
	ratio := w / h
	if ratio < minAspect || ratio > maxAspect {
		return 0, 0, domain.Invalid("Aspect ratio must be between 1:4 and 4:1")
	}
	scale := math.Sqrt(ratio)
	width := int(math.Round(float64(target) * scale))
	height := int(math.Round(float64(target) / scale))
	width -= width % stride
	height -= height % stride
	if width < stride || height < stride {
		return 0, 0, domain.Invalid("Resolution is too low")
	}
	return width, height, nil
}
