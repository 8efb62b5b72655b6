package core

import (
	"sort"
	"sync"

	"avrperiph/protocol"
)

// Dictionary is the data dictionary the host fetches with identify. It is
// served uncompressed: there is no room for a deflate window in 2 KB of
// RAM, and the host accepts plain JSON.
type Dictionary struct {
	mu           sync.Mutex
	reg          *CommandRegistry
	version      string
	build        string
	constants    map[string]string
	enumerations map[string][]string
	cached       []byte
}

var globalDictionary = NewDictionary(globalRegistry)

func NewDictionary(reg *CommandRegistry) *Dictionary {
	return &Dictionary{
		reg:          reg,
		version:      protocol.Version,
		build:        "tinygo-avr",
		constants:    make(map[string]string),
		enumerations: make(map[string][]string),
	}
}

// RegisterConstant adds a constant to the global dictionary.
func RegisterConstant(name string, value uint32) {
	globalDictionary.AddConstant(name, utoa(value))
}

// RegisterEnumeration adds an enumeration to the global dictionary. Values
// are numbered by position; empty names are skipped.
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

func (d *Dictionary) AddConstant(name, value string) {
	d.mu.Lock()
	d.constants[name] = value
	d.cached = nil
	d.mu.Unlock()
}

func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	d.enumerations[name] = append([]string(nil), values...)
	d.cached = nil
	d.mu.Unlock()
}

func (d *Dictionary) SetBuildVersions(v string) {
	d.mu.Lock()
	d.build = v
	d.cached = nil
	d.mu.Unlock()
}

// Invalidate drops the cached JSON after commands were registered.
func (d *Dictionary) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

// Generate returns the JSON dictionary, building it on first use after a
// change.
func (d *Dictionary) Generate() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		d.cached = d.buildJSON()
	}
	return d.cached
}

// GetChunk returns up to count bytes of the dictionary from offset. Past
// the end it returns an empty chunk, which tells the host it is done.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	return data[offset:end]
}

// buildJSON writes the dictionary by hand; encoding/json pulls reflection
// into the firmware image. Names never need escaping.
func (d *Dictionary) buildJSON() []byte {
	b := make([]byte, 0, 1024)
	b = append(b, `{"version":"`...)
	b = append(b, d.version...)
	b = append(b, `","build_versions":"`...)
	b = append(b, d.build...)
	b = append(b, `","config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendQuoted(b, name)
		b = append(b, ':')
		b = appendQuoted(b, d.constants[name])
	}

	b = append(b, `},"commands":{`...)
	b = d.appendCommands(b, true)
	b = append(b, `},"responses":{`...)
	b = d.appendCommands(b, false)
	b = append(b, '}')

	if len(d.enumerations) > 0 {
		b = append(b, `,"enumerations":{`...)
		for i, name := range sortedKeys(d.enumerations) {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendQuoted(b, name)
			b = append(b, `:{`...)
			first := true
			for v, value := range d.enumerations[name] {
				if value == "" {
					continue
				}
				if !first {
					b = append(b, ',')
				}
				first = false
				b = appendQuoted(b, value)
				b = append(b, ':')
				b = append(b, itoa(v)...)
			}
			b = append(b, '}')
		}
		b = append(b, '}')
	}
	return append(b, '}')
}

func (d *Dictionary) appendCommands(b []byte, handlers bool) []byte {
	first := true
	d.reg.Each(func(c *Command) {
		if (c.Handler != nil) != handlers {
			return
		}
		if !first {
			b = append(b, ',')
		}
		first = false
		b = append(b, '"')
		b = append(b, c.Name...)
		if c.Format != "" {
			b = append(b, ' ')
			b = append(b, c.Format...)
		}
		b = append(b, `":`...)
		b = append(b, itoa(int(c.ID))...)
	})
	return b
}

func appendQuoted(b []byte, s string) []byte {
	b = append(b, '"')
	b = append(b, s...)
	return append(b, '"')
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
