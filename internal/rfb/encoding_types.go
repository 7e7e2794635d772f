package rfb

// EncodingType is the signed 32-bit wire identifier for a rectangle
// encoding or pseudo-encoding (spec §4.6: "encoding identifiers are i32").
type EncodingType int32

// Real encodings (non-negative).
const (
	EncodingRaw      EncodingType = 0
	EncodingCopyRect EncodingType = 1
	EncodingRRE      EncodingType = 2
	EncodingHextile  EncodingType = 5
	EncodingTight    EncodingType = 7
	EncodingZRLE     EncodingType = 16
)

// Pseudo-encodings (negative): metadata, not pixel data.
const (
	EncodingCursorPseudo           EncodingType = -239
	EncodingDesktopSizePseudo      EncodingType = -223
	EncodingExtendedDesktopSizePseudo EncodingType = -308
)

// ContentHint steers EncoderManager.Select's preference order (spec §4.5).
type ContentHint int

const (
	HintDefault ContentHint = iota
	HintStatic
	HintDynamic
	HintScrolling
	HintLAN
)
