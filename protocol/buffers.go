package protocol

// InputBuffer is received data waiting to be parsed.
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer collects outgoing blocks. Update and DataSince let a writer
// patch the length byte of a block after its payload is known.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a fixed slice.
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is an OutputBuffer in a fixed array. Output beyond
// MessageMax is dropped and counted in Overflow.
type ScratchOutput struct {
	buf      [MessageMax]byte
	pos      int
	Overflow int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	s.Overflow += len(data) - n
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result is everything written since the last Reset.
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Truncate drops everything written after pos.
func (s *ScratchOutput) Truncate(pos int) {
	if pos >= 0 && pos < s.pos {
		s.pos = pos
	}
}

func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.Overflow = 0
}

// FifoBuffer is a byte queue for serial receive. It keeps its contents
// contiguous: Pop moves the tail to the front, so Data never allocates,
// which matters on a part with 2 KB of RAM.
type FifoBuffer struct {
	buf []byte
	n   int
}

// NewFifoBuffer returns a queue holding up to capacity bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count.
func (f *FifoBuffer) Write(data []byte) int {
	n := copy(f.buf[f.n:], data)
	f.n += n
	return n
}

// PutByte appends c. It reports false when the queue is full.
func (f *FifoBuffer) PutByte(c byte) bool {
	if f.n == len(f.buf) {
		return false
	}
	f.buf[f.n] = c
	f.n++
	return true
}

// Read moves up to len(data) bytes out of the queue.
func (f *FifoBuffer) Read(data []byte) int {
	n := copy(data, f.buf[:f.n])
	f.Pop(n)
	return n
}

func (f *FifoBuffer) Data() []byte   { return f.buf[:f.n] }
func (f *FifoBuffer) Available() int { return f.n }
func (f *FifoBuffer) Free() int      { return len(f.buf) - f.n }
func (f *FifoBuffer) IsEmpty() bool  { return f.n == 0 }

func (f *FifoBuffer) Pop(n int) {
	if n >= f.n {
		f.n = 0
		return
	}
	if n <= 0 {
		return
	}
	copy(f.buf, f.buf[n:f.n])
	f.n -= n
}

func (f *FifoBuffer) Reset() {
	f.n = 0
}
