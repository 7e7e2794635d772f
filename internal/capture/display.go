package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
)

// DisplayCapturer captures one physical display through kbinani/screenshot,
// converting its RGBA output into the server-native BGRX layout every other
// package in the pipeline expects.
//
// Grounded on examples/screengrab/main.go's screenshot.NumActiveDisplays /
// screenshot.GetDisplayBounds / screenshot.CaptureDisplay usage; that example
// feeds the captured *image.RGBA straight into the teacher's own RGBA-aware
// push path, whereas this pipeline standardizes everything downstream on one
// packed byte layout, so the conversion happens once, here, at the source.
type DisplayCapturer struct {
	mu      sync.Mutex
	display int
	width   int
	height  int
}

// NewDisplayCapturer binds to the given display index (0 is the primary
// display). Returns an error if no active displays are found or the index
// is out of range.
func NewDisplayCapturer(display int) (*DisplayCapturer, error) {
	n := screenshot.NumActiveDisplays()
	if n < 1 {
		return nil, fmt.Errorf("capture: no active displays found")
	}
	if display < 0 || display >= n {
		return nil, fmt.Errorf("capture: display index %d out of range (%d active)", display, n)
	}
	bounds := screenshot.GetDisplayBounds(display)
	return &DisplayCapturer{display: display, width: bounds.Dx(), height: bounds.Dy()}, nil
}

func (d *DisplayCapturer) Dimensions() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// Resize re-reads the bound display's current bounds, picking up an
// out-of-band resolution change (e.g. the host's display mode changed).
// width/height are accepted for interface symmetry with other resizers but
// ignored: a physical display's size isn't settable by this process.
func (d *DisplayCapturer) Resize(int, int) error {
	bounds := screenshot.GetDisplayBounds(d.display)
	d.mu.Lock()
	d.width, d.height = bounds.Dx(), bounds.Dy()
	d.mu.Unlock()
	return nil
}

func (d *DisplayCapturer) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	img, err := screenshot.CaptureDisplay(d.display)
	if err != nil {
		return Frame{}, fmt.Errorf("capture: display %d: %w", d.display, err)
	}

	d.mu.Lock()
	d.width, d.height = img.Rect.Dx(), img.Rect.Dy()
	width, height := d.width, d.height
	d.mu.Unlock()

	return Frame{
		Width:  width,
		Height: height,
		Pixels: rgbaToServerNative(img),
	}, nil
}

// rgbaToServerNative repacks an *image.RGBA (R,G,B,A quadruplets, row
// stride img.Stride which may exceed width*4) into a tightly-packed
// server-native B,G,R,0 buffer.
func rgbaToServerNative(img *image.RGBA) []byte {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	out := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		srcRow := img.Pix[y*img.Stride : y*img.Stride+width*4]
		dstRow := out[y*width*4 : (y+1)*width*4]
		for x := 0; x < width; x++ {
			so := x * 4
			dstRow[so] = srcRow[so+2]   // B
			dstRow[so+1] = srcRow[so+1] // G
			dstRow[so+2] = srcRow[so]   // R
			dstRow[so+3] = 0
		}
	}
	return out
}
