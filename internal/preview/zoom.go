package preview

const (
	MinZoom     = 0.5
	MaxZoom     = 2.0
	ZoomStep    = 0.25
	DefaultZoom = 1.0
)

// Zoom is a display-only scale factor clamped to [MinZoom, MaxZoom].
type Zoom struct {
	value float64
}

func NewZoom() *Zoom {
	return &Zoom{value: DefaultZoom}
}

func (z *Zoom) In() float64 {
	z.value = clampZoom(z.value + ZoomStep)
	return z.value
}

func (z *Zoom) Out() float64 {
	z.value = clampZoom(z.value - ZoomStep)
	return z.value
}

// Set clamps v into range rather than rejecting it.
func (z *Zoom) Set(v float64) float64 {
	z.value = clampZoom(v)
	return z.value
}

func (z *Zoom) Value() float64 { return z.value }

// Percent is the zoom factor as a whole percentage for labels.
func (z *Zoom) Percent() int {
	return int(z.value*100 + 0.5)
}

func clampZoom(v float64) float64 {
	// NaN compares false against both bounds
	if v != v {
		return DefaultZoom
	}
	if v < MinZoom {
		return MinZoom
	}
	if v > MaxZoom {
		return MaxZoom
	}
	return v
}
