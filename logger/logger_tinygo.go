//go:build tinygo

package logger

func init() {
	globalLogger = &writerLogger{}
}

// Writer is where firmware log lines go. It is nil until the target sets it;
// the USART link usually owns the serial port, so logging stays quiet by
// default.
var Writer func(line string)

// SetWriter routes log lines to w.
func SetWriter(w func(line string)) {
	Writer = w
}

type writerLogger struct{}

func (l *writerLogger) log(level, msg string) {
	if Writer != nil {
		Writer(level + msg + "\r\n")
	}
}

func (l *writerLogger) Debug(msg string) { l.log("[DEBUG] ", msg) }
func (l *writerLogger) Info(msg string)  { l.log("[INFO]  ", msg) }
func (l *writerLogger) Warn(msg string)  { l.log("[WARN]  ", msg) }
func (l *writerLogger) Error(msg string) { l.log("[ERROR] ", msg) }
