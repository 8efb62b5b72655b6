// Package logger is the logging hook shared by the drivers and the firmware
// core. Messages are plain strings so TinyGo builds do not pull in fmt.
package logger

// Logger receives one message per call.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

var globalLogger Logger = &nopLogger{}

// Set replaces the process logger. nil silences logging.
func Set(l Logger) {
	if l == nil {
		globalLogger = &nopLogger{}
		return
	}
	globalLogger = l
}

// Get returns the process logger.
func Get() Logger {
	return globalLogger
}

func Debug(msg string) { globalLogger.Debug(msg) }
func Info(msg string)  { globalLogger.Info(msg) }
func Warn(msg string)  { globalLogger.Warn(msg) }
func Error(msg string) { globalLogger.Error(msg) }

type nopLogger struct{}

func (l *nopLogger) Debug(msg string) {}
func (l *nopLogger) Info(msg string)  {}
func (l *nopLogger) Warn(msg string)  {}
func (l *nopLogger) Error(msg string) {}

// Itoa formats n in decimal without fmt or strconv.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
