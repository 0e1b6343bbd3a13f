package hexconv

// Halfbyte maps an ASCII character to its hex nibble value, or 0xFF if the
// character is not a hex digit.
var Halfbyte = [256]byte{}

func init() {
	for i := range Halfbyte {
		Halfbyte[i] = 0xFF
	}

	for c := '0'; c <= '9'; c++ {
		Halfbyte[c] = byte(c - '0')
	}

	for c := 'a'; c <= 'f'; c++ {
		Halfbyte[c] = byte(c-'a') + 10
	}

	for c := 'A'; c <= 'F'; c++ {
		Halfbyte[c] = byte(c-'A') + 10
	}
}

// Is tells whether the character is a hex digit.
func Is(c byte) bool {
	return Halfbyte[c] != 0xFF
}

// Pair combines two hex digits into a byte. Both must be valid.
func Pair(hi, lo byte) byte {
	return Halfbyte[hi]<<4 | Halfbyte[lo]
}
