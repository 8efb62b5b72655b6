package hal

// Memory is a flat data space with no peripheral behaviour behind it. Writes
// read back verbatim, which makes it the simplest bus for checking which bits
// a driver programs.
type Memory struct {
	cells [DataSpaceSize]uint8
}

// NewMemory returns a zeroed data space.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(addr Addr) uint8 {
	if int(addr) >= len(m.cells) {
		return 0
	}
	return m.cells[addr]
}

func (m *Memory) Store(addr Addr, value uint8) {
	if int(addr) >= len(m.cells) {
		return
	}
	m.cells[addr] = value
}
