package geometry

import "fmt"

// Package geometry decides whether an image fits a target display profile.
// It is pure: no I/O, no logging.

// Spec describes the desired geometry of a target.
type Spec struct {
	Width     int
	Height    int
	Tolerance float64
}

// Fits reports whether an image of the given dimensions is acceptable for the
// spec. An image fits when its aspect ratio is within the relative tolerance
// of the desired ratio (boundary inclusive) and neither dimension is smaller
// than the target, so accepted images never need upscaling.
func Fits(imageWidth, imageHeight int, spec Spec) (bool, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return false, fmt.Errorf("degenerate image dimensions %dx%d", imageWidth, imageHeight)
	}
	if spec.Width <= 0 || spec.Height <= 0 {
		return false, fmt.Errorf("degenerate target dimensions %dx%d", spec.Width, spec.Height)
	}

	if imageWidth < spec.Width || imageHeight < spec.Height {
		return false, nil
	}

	// |w/h - W/H| / (W/H) <= tol, rearranged to |w*H - W*h| <= tol * W*h.
	// The integer cross-products keep the boundary comparison exact where
	// dividing the ratios would round at the tolerance edge.
	cross := imageWidth*spec.Height - spec.Width*imageHeight
	if cross < 0 {
		cross = -cross
	}
	return float64(cross) <= spec.Tolerance*float64(spec.Width*imageHeight), nil
}
