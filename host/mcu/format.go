package mcu

import (
	"errors"
	"fmt"
	"strings"

	"avrperiph/protocol"
)

var (
	ErrUnknownCommand = errors.New("mcu: unknown command")
	ErrArgCount       = errors.New("mcu: wrong number of arguments")
)

type paramKind uint8

const (
	kindUint paramKind = iota
	kindInt
	kindBytes
)

type param struct {
	name string
	kind paramKind
}

// message is one dictionary entry: "name key=%fmt key=%fmt ..." and its ID.
type message struct {
	id     uint16
	name   string
	params []param
}

// parseMessage splits a dictionary key into its name and parameters.
func parseMessage(key string, id int) (*message, error) {
	fields := strings.Fields(key)
	if len(fields) == 0 {
		return nil, fmt.Errorf("mcu: empty message format")
	}
	m := &message{id: uint16(id), name: fields[0]}
	for _, f := range fields[1:] {
		name, verb, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("mcu: %s: bad parameter %q", m.name, f)
		}
		var kind paramKind
		switch verb {
		case "%u", "%hu", "%c":
			kind = kindUint
		case "%i", "%hi":
			kind = kindInt
		case "%*s", "%.*s", "%s":
			kind = kindBytes
		default:
			return nil, fmt.Errorf("mcu: %s: unsupported format %q", m.name, verb)
		}
		m.params = append(m.params, param{name: name, kind: kind})
	}
	return m, nil
}

// check validates args against the parameter list. Byte parameters are
// not used by any command and are rejected.
func (m *message) check(args []uint32) error {
	if len(args) != len(m.params) {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArgCount, m.name, len(m.params), len(args))
	}
	for _, p := range m.params {
		if p.kind == kindBytes {
			return fmt.Errorf("mcu: %s: cannot encode %s", m.name, p.name)
		}
	}
	return nil
}

// encode writes args, already checked, in parameter order.
func (m *message) encode(out protocol.OutputBuffer, args []uint32) {
	for _, a := range args {
		protocol.EncodeVLQUint(out, a)
	}
}

// decode reads a response body.
func (m *message) decode(data *[]byte) (*Response, error) {
	r := &Response{
		Name:   m.name,
		ID:     m.id,
		params: m.params,
		values: make(map[string]uint32, len(m.params)),
	}
	for _, p := range m.params {
		if p.kind == kindBytes {
			b, err := protocol.DecodeVLQBytes(data)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.name, p.name, err)
			}
			if r.bytes == nil {
				r.bytes = make(map[string][]byte)
			}
			r.bytes[p.name] = append([]byte(nil), b...)
			continue
		}
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.name, p.name, err)
		}
		r.values[p.name] = v
	}
	return r, nil
}

// Response is a decoded response message.
type Response struct {
	Name string
	ID   uint16

	params []param
	values map[string]uint32
	bytes  map[string][]byte
}

func (r *Response) Uint(name string) uint32 { return r.values[name] }

func (r *Response) Int(name string) int32 { return int32(r.values[name]) }

func (r *Response) Bool(name string) bool { return r.values[name] != 0 }

func (r *Response) Bytes(name string) []byte { return r.bytes[name] }

func (r *Response) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	for _, p := range r.params {
		switch p.kind {
		case kindBytes:
			fmt.Fprintf(&b, " %s=%q", p.name, r.bytes[p.name])
		case kindInt:
			fmt.Fprintf(&b, " %s=%d", p.name, r.Int(p.name))
		default:
			fmt.Fprintf(&b, " %s=%d", p.name, r.values[p.name])
		}
	}
	return b.String()
}
