package encodings

// Set bundles one client connection's stateful encoder instances. The
// CopyRect shift detector and the ZRLE/Tight persistent zlib streams must
// survive across frames for exactly one connection — a new Set is created
// per ClientState, never shared (spec §4.9).
type Set struct {
	Raw      RawEncoder
	CopyRect *CopyRectEncoder
	RRE      RREEncoder
	Hextile  HextileEncoder
	ZRLE     *ZRLEEncoder
	Tight    *TightEncoder
}

func NewSet() *Set {
	return &Set{
		CopyRect: NewCopyRectEncoder(),
		ZRLE:     NewZRLEEncoder(),
		Tight:    NewTightEncoder(),
	}
}

// Encode dispatches to the stateless/stateful encoder for code. CopyRect
// isn't reachable here — it needs the full previous/current frame, not
// just one rectangle's pixels, so the session loop calls its Detect method
// directly before falling through to Encode for whatever code follows.
func (s *Set) Encode(code Code, pixels []byte, width, height, bpp int) ([]byte, error) {
	switch code {
	case CodeRaw:
		return s.Raw.Encode(pixels, width, height, bpp)
	case CodeRRE:
		return s.RRE.Encode(pixels, width, height, bpp)
	case CodeHextile:
		return s.Hextile.Encode(pixels, width, height, bpp)
	case CodeZRLE:
		return s.ZRLE.Encode(pixels, width, height, bpp)
	case CodeTight:
		return s.Tight.Encode(pixels, width, height, bpp)
	default:
		return s.Raw.Encode(pixels, width, height, bpp)
	}
}

// ApplyPixelFormat configures the encoders whose wire layout depends on the
// negotiated PixelFormat: ZRLE's and Tight's compact-pixel size drop the
// padding byte only for the 32bpp/depth24 true-color case.
func (s *Set) ApplyPixelFormat(bytesPerPixel int, tightTrueColour24 bool) {
	cpb := 0
	if tightTrueColour24 && bytesPerPixel == 4 {
		cpb = 3
	}
	s.ZRLE.CPixelBytes = cpb
	s.Tight.TPixelBytes = cpb
}
