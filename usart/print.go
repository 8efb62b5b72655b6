package usart

import "avrperiph/logger"

// PutString sends s.
func (u *USART) PutString(s string) {
	for i := 0; i < len(s); i++ {
		u.WriteByte(s[i])
	}
}

// GetString reads until carriage return or until size bytes have been
// read. The carriage return is consumed and not returned.
func (u *USART) GetString(size int) string {
	buf := make([]byte, 0, size)
	for len(buf) < size {
		c, _ := u.ReadByte()
		if c == cr {
			break
		}
		buf = append(buf, c)
	}
	return string(buf)
}

// PrintByte sends n as exactly three decimal digits.
func (u *USART) PrintByte(n uint8) {
	u.WriteByte('0' + n/100)
	u.WriteByte('0' + n/10%10)
	u.WriteByte('0' + n%10)
}

// PrintNumber sends n in decimal.
func (u *USART) PrintNumber(n uint16) {
	u.PutString(logger.Itoa(int(n)))
}

// PrintLine sends a newline.
func (u *USART) PrintLine() {
	u.WriteByte('\n')
}
