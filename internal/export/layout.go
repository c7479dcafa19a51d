package export

// Page geometry in CSS pixels (96 per inch): A4 portrait with 10 mm margins.
const (
	PageWidthCSS     = 794
	PageHeightCSS    = 1123
	MarginCSS        = 38
	ContentWidthCSS  = PageWidthCSS - 2*MarginCSS
	ContentHeightCSS = PageHeightCSS - 2*MarginCSS

	// DeviceScale is the fixed capture scale. It never follows preview zoom.
	DeviceScale = 2
)

// A4 in inches and the 10 mm margin, for vector printing.
const (
	PaperWidthIn  = 8.27
	PaperHeightIn = 11.69
	MarginIn      = 0.39
)
