package encodings

// Code is the wire encoding-type identifier, duplicated here (rather than
// imported from the protocol package) so this package stays free of a
// dependency on it — internal/rfb depends on internal/encodings, not the
// other way around.
type Code int32

const (
	CodeRaw      Code = 0
	CodeCopyRect Code = 1
	CodeRRE      Code = 2
	CodeHextile  Code = 5
	CodeTight    Code = 7
	CodeZRLE     Code = 16
)

// Hint mirrors rfb.ContentHint; see Code's doc comment for why it's
// duplicated rather than imported.
type Hint int

const (
	HintDefault Hint = iota
	HintStatic
	HintDynamic
	HintScrolling
	HintLAN
)

// tightJPEGMinPixels is the minimum rectangle area worth paying JPEG's
// lossy-encode cost for (spec §4.5).
const tightJPEGMinPixels = 4096

// DefaultTightJPEGQuality is used unless configuration overrides it.
const DefaultTightJPEGQuality = 80

// preferenceLists gives, per content hint, the encoder trial order before
// intersecting with what the client actually advertised. Tight is not in
// these lists — PreferTight decides separately whether to try it first,
// since its payoff depends on rectangle size rather than content hint
// alone (spec §4.5, §4.7).
var preferenceLists = map[Hint][]Code{
	HintStatic:    {CodeZRLE, CodeHextile, CodeRRE, CodeRaw},
	HintDynamic:   {CodeHextile, CodeRRE, CodeRaw, CodeZRLE},
	HintScrolling: {CodeCopyRect, CodeHextile, CodeRRE, CodeZRLE, CodeRaw},
	HintLAN:       {CodeRaw, CodeZRLE, CodeHextile, CodeRRE, CodeCopyRect},
	HintDefault:   {CodeZRLE, CodeHextile, CodeRRE, CodeCopyRect, CodeRaw},
}

// EncoderManager orders candidate encodings for a rectangle given the
// client's advertised SetEncodings list and the session's current content
// hint (spec §4.5/§4.7).
type EncoderManager struct{}

func NewEncoderManager() *EncoderManager { return &EncoderManager{} }

// Select returns, in trial order, the codes from hint's preference list
// that the client actually advertised. Raw is appended at the end even if
// missing from the list above, since every client must accept it.
func (m *EncoderManager) Select(clientCodes []Code, hint Hint) []Code {
	supported := make(map[Code]bool, len(clientCodes))
	for _, c := range clientCodes {
		supported[c] = true
	}
	list, ok := preferenceLists[hint]
	if !ok {
		list = preferenceLists[HintDefault]
	}

	out := make([]Code, 0, len(list)+1)
	for _, c := range list {
		if supported[c] {
			out = append(out, c)
		}
	}
	if len(out) == 0 || out[len(out)-1] != CodeRaw {
		out = append(out, CodeRaw)
	}
	return out
}

// PreferTight reports whether Tight should be tried ahead of the ordinary
// preference list: the client must support it, and the rectangle must be
// large enough that its palette/gradient/zlib machinery has a chance to
// beat Raw outright.
func (m *EncoderManager) PreferTight(clientCodes []Code, rectArea int) bool {
	if rectArea < tightJPEGMinPixels {
		return false
	}
	for _, c := range clientCodes {
		if c == CodeTight {
			return true
		}
	}
	return false
}
