package core

import "avrperiph/logger"

func itoa(n int) string {
	return logger.Itoa(n)
}

// utoa formats a full uint32; int is 16 bits on AVR.
func utoa(n uint32) string {
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

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
