package hal

// Vector is an interrupt vector number as numbered by avr-libc
// (_VECTOR(n)). A lower number has higher priority.
type Vector uint8

const (
	VectorINT0        Vector = 1
	VectorINT1        Vector = 2
	VectorPCINT0      Vector = 3
	VectorPCINT1      Vector = 4
	VectorPCINT2      Vector = 5
	VectorWDT         Vector = 6
	VectorTimer2CompA Vector = 7
	VectorTimer2CompB Vector = 8
	VectorTimer2Ovf   Vector = 9
	VectorTimer1Capt  Vector = 10
	VectorTimer1CompA Vector = 11
	VectorTimer1CompB Vector = 12
	VectorTimer1Ovf   Vector = 13
	VectorTimer0CompA Vector = 14
	VectorTimer0CompB Vector = 15
	VectorTimer0Ovf   Vector = 16
	VectorSPI         Vector = 17
	VectorUSARTRx     Vector = 18
	VectorUSARTUdre   Vector = 19
	VectorUSARTTx     Vector = 20
	VectorADC         Vector = 21

	// VectorCount is one past the highest vector number.
	VectorCount = 26
)

// Servicer delivers an interrupt vector. Device glue calls it from the real
// interrupt entry point; the simulator calls it after raising a flag.
type Servicer interface {
	Service(v Vector) bool
}

// Vectors binds vector numbers to entry functions. Service on a vector
// with nothing bound runs nothing and returns false; the caller decides what
// that means (the simulator drops the request after clearing its flag).
type Vectors struct {
	entries [VectorCount]func()
}

// NewVectors returns an empty table.
func NewVectors() *Vectors {
	return &Vectors{}
}

// Bind installs fn as the entry for v, replacing any previous entry.
func (t *Vectors) Bind(v Vector, fn func()) {
	if int(v) >= len(t.entries) {
		return
	}
	t.entries[v] = fn
}

// Unbind removes the entry for v.
func (t *Vectors) Unbind(v Vector) {
	t.Bind(v, nil)
}

// Bound reports whether v has an entry.
func (t *Vectors) Bound(v Vector) bool {
	return int(v) < len(t.entries) && t.entries[v] != nil
}

// Service runs the entry for v and reports whether one was bound.
func (t *Vectors) Service(v Vector) bool {
	if int(v) >= len(t.entries) {
		return false
	}
	fn := t.entries[v]
	if fn == nil {
		return false
	}
	fn()
	return true
}
