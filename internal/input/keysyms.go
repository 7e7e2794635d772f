package input

// keysymNames maps the common non-printable X11 keysyms (RFC 6143 §7.5.4
// carries X11 keysym values verbatim) to sink key names. Printable ASCII
// (0x0020-0x007E) is handled separately in translator.go rather than listed
// here one by one.
//
// Grounded on original_source/vnc_lib/input_handler.py's _keysym_to_key
// table.
var keysymNames = map[uint32]string{
	0xFF08: "backspace",
	0xFF09: "tab",
	0xFF0D: "enter",
	0xFF1B: "esc",
	0xFF50: "home",
	0xFF51: "left",
	0xFF52: "up",
	0xFF53: "right",
	0xFF54: "down",
	0xFF55: "pageup",
	0xFF56: "pagedown",
	0xFF57: "end",
	0xFF63: "insert",
	0xFFFF: "delete",

	0xFFBE: "f1",
	0xFFBF: "f2",
	0xFFC0: "f3",
	0xFFC1: "f4",
	0xFFC2: "f5",
	0xFFC3: "f6",
	0xFFC4: "f7",
	0xFFC5: "f8",
	0xFFC6: "f9",
	0xFFC7: "f10",
	0xFFC8: "f11",
	0xFFC9: "f12",

	0xFFE1: "shift",
	0xFFE2: "shift",
	0xFFE3: "ctrl",
	0xFFE4: "ctrl",
	0xFFE9: "alt",
	0xFFEA: "alt",
	0xFFEB: "win",
	0xFFEC: "win",

	0xFFAA: "multiply",
	0xFFAB: "add",
	0xFFAD: "subtract",
	0xFFAE: "decimal",
	0xFFAF: "divide",
}

// keysymToName resolves an X11 keysym to a sink key name. Returns ok=false
// for keysyms with no known mapping; Translator.HandleKeyEvent drops these
// without logging, never treating them as fatal (spec §4.9).
func keysymToName(keysym uint32) (name string, ok bool) {
	if keysym >= 0x0020 && keysym <= 0x007E {
		return string(rune(keysym)), true
	}
	name, ok = keysymNames[keysym]
	return name, ok
}
