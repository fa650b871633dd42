package core

// Firmware paths build diagnostic strings without the fmt package.

// Itoa converts a signed integer to decimal.
func Itoa(n int) string {
	if n < 0 {
		return "-" + Utoa(uint32(-n))
	}
	return Utoa(uint32(n))
}

// Utoa converts an unsigned integer to decimal.
func Utoa(n uint32) string {
	if n == 0 {
		return "0"
	}

	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

const hexDigits = "0123456789abcdef"

// Hex32 renders v as 0x followed by eight lowercase hex digits.
func Hex32(v uint32) string {
	var buf [10]byte
	buf[0] = '0'
	buf[1] = 'x'
	for i := 0; i < 8; i++ {
		buf[9-i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf[:])
}

// contains is strings.Contains without pulling in the strings package.
func contains(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
