// Package mcu is the host-side client for the avrperiph firmware. It
// retrieves the firmware dictionary, encodes commands by name and matches
// responses to the commands that asked for them.
package mcu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"avrperiph/host/serial"
	"avrperiph/logger"
	"avrperiph/protocol"
)

var (
	ErrNotConnected = errors.New("mcu: not connected")
	ErrNoDictionary = errors.New("mcu: dictionary not loaded")
)

// identifyChunk is how many dictionary bytes one identify asks for. It
// keeps identify_response inside one block.
const identifyChunk = 40

// MCU is a connection to one board.
type MCU struct {
	transport *protocol.HostTransport
	port      serial.Port

	// Timeout bounds each command when the caller's context has no
	// deadline.
	Timeout time.Duration

	dictionary     *Dictionary
	dictionaryData []byte

	mu        sync.Mutex
	commands  map[string]*message
	responses map[uint16]*message
	waiters   []*waiter
	listeners map[string][]func(*Response)
}

// Dictionary is the firmware's self-description.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

type waiter struct {
	names []string
	match func(*Response) bool
	ch    chan *Response
}

func (w *waiter) wants(r *Response) bool {
	for _, n := range w.names {
		if n == r.Name {
			return w.match == nil || w.match(r)
		}
	}
	return false
}

// New returns an unconnected MCU. Before the dictionary is loaded it only
// knows identify and identify_response, which are fixed at IDs 1 and 0.
func New() *MCU {
	m := &MCU{
		Timeout:   protocol.DefaultTimeout,
		listeners: make(map[string][]func(*Response)),
	}
	m.resetMessages()
	return m
}

func (m *MCU) resetMessages() {
	idResp, _ := parseMessage("identify_response offset=%u data=%.*s", 0)
	id, _ := parseMessage("identify offset=%u count=%c", 1)
	m.responses = map[uint16]*message{0: idResp}
	m.commands = map[string]*message{"identify": id}
}

// Connect opens device with the default serial settings.
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens the serial port described by cfg.
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	m.Attach(port)

	// The bootloader holds the line for a moment after a port open resets
	// the board.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Attach uses an already open connection, such as a loopback.
func (m *MCU) Attach(rwc io.ReadWriteCloser) {
	port := serial.Wrap(rwc)
	t := protocol.NewHostTransport(port)
	t.SetResponseHandler(m.handleResponse)

	m.mu.Lock()
	m.port = port
	m.transport = t
	m.mu.Unlock()
}

// Close closes the connection.
func (m *MCU) Close() error {
	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}

func (m *MCU) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport != nil
}

func (m *MCU) conn() (*protocol.HostTransport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transport == nil {
		return nil, ErrNotConnected
	}
	return m.transport, nil
}

func (m *MCU) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || m.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.Timeout)
}

// RetrieveDictionary reads the dictionary with identify until a short
// chunk, then parses it and switches to the IDs it names.
func (m *MCU) RetrieveDictionary(ctx context.Context) error {
	if _, err := m.conn(); err != nil {
		return err
	}
	logger.Info("retrieving dictionary")

	var buf bytes.Buffer
	for offset := uint32(0); ; {
		chunk, err := m.identify(ctx, offset)
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", offset, err)
		}
		buf.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < identifyChunk {
			break
		}
	}
	logger.Info("dictionary retrieved: " + logger.Itoa(buf.Len()) + " bytes")
	return m.LoadDictionary(buf.Bytes())
}

func (m *MCU) identify(ctx context.Context, offset uint32) ([]byte, error) {
	r, err := m.query(ctx, "identify", []uint32{offset, identifyChunk}, func(r *Response) bool {
		return r.Uint("offset") == offset
	}, "identify_response")
	if err != nil {
		return nil, err
	}
	return r.Bytes("data"), nil
}

// LoadDictionary parses a dictionary and replaces the known messages.
func (m *MCU) LoadDictionary(data []byte) error {
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return fmt.Errorf("failed to unmarshal dictionary: %w", err)
	}

	commands := make(map[string]*message, len(dict.Commands))
	for key, id := range dict.Commands {
		msg, err := parseMessage(key, id)
		if err != nil {
			return err
		}
		commands[msg.name] = msg
	}
	responses := make(map[uint16]*message, len(dict.Responses))
	for key, id := range dict.Responses {
		msg, err := parseMessage(key, id)
		if err != nil {
			return err
		}
		responses[msg.id] = msg
	}

	m.mu.Lock()
	m.dictionary = dict
	m.dictionaryData = append([]byte(nil), data...)
	m.commands = commands
	m.responses = responses
	m.mu.Unlock()
	return nil
}

// GetDictionary returns the parsed dictionary, nil before it is loaded.
func (m *MCU) GetDictionary() *Dictionary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionary
}

// GetDictionaryRaw returns the dictionary JSON as received.
func (m *MCU) GetDictionaryRaw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionaryData
}

// PrintDictionary writes a summary of the dictionary to w.
func (m *MCU) PrintDictionary(w io.Writer) {
	d := m.GetDictionary()
	if d == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}
	printByID(w, "Commands", d.Commands)
	printByID(w, "Responses", d.Responses)
	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		for _, name := range sortedKeys(d.Enumerations) {
			fmt.Fprintf(w, "  %s: %d values\n", name, len(d.Enumerations[name]))
		}
	}
}

func printByID(w io.Writer, title string, msgs map[string]int) {
	keys := make([]string, 0, len(msgs))
	for k := range msgs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return msgs[keys[i]] < msgs[keys[j]] })
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(keys))
	for _, k := range keys {
		fmt.Fprintf(w, "  [%d] %s\n", msgs[k], k)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Send encodes the named command with args and waits for its ACK.
func (m *MCU) Send(ctx context.Context, name string, args ...uint32) error {
	t, err := m.conn()
	if err != nil {
		return err
	}
	m.mu.Lock()
	msg, ok := m.commands[name]
	m.mu.Unlock()
	if !ok {
		if m.GetDictionary() == nil {
			return fmt.Errorf("%s: %w", name, ErrNoDictionary)
		}
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	if err := msg.check(args); err != nil {
		return err
	}

	ctx, cancel := m.context(ctx)
	defer cancel()
	return t.Send(ctx, msg.id, func(out protocol.OutputBuffer) {
		msg.encode(out, args)
	})
}

// Query sends a command and returns the first response named in names
// that arrives after it.
func (m *MCU) Query(ctx context.Context, name string, args []uint32, names ...string) (*Response, error) {
	return m.query(ctx, name, args, nil, names...)
}

func (m *MCU) query(ctx context.Context, name string, args []uint32, match func(*Response) bool, names ...string) (*Response, error) {
	w := &waiter{names: names, match: match, ch: make(chan *Response, 1)}
	m.mu.Lock()
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()
	defer m.dropWaiter(w)

	ctx, cancel := m.context(ctx)
	defer cancel()
	if err := m.Send(ctx, name, args...); err != nil {
		return nil, err
	}
	select {
	case r := <-w.ch:
		return r, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", name, protocol.ErrResponseTimeout)
		}
		return nil, ctx.Err()
	}
}

func (m *MCU) dropWaiter(w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.waiters {
		if x == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

// On calls fn for every response named name, from the reader goroutine.
func (m *MCU) On(name string, fn func(*Response)) {
	m.mu.Lock()
	m.listeners[name] = append(m.listeners[name], fn)
	m.mu.Unlock()
}

func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	m.mu.Lock()
	msg, ok := m.responses[cmdID]
	m.mu.Unlock()
	if !ok {
		logger.Debug("unknown response id " + logger.Itoa(int(cmdID)))
		return ErrUnknownCommand
	}
	r, err := msg.decode(data)
	if err != nil {
		logger.Warn("decode " + msg.name + ": " + err.Error())
		return err
	}

	// Listeners run first so a query returns after they have seen its
	// response.
	m.mu.Lock()
	fns := append([]func(*Response){}, m.listeners[r.Name]...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.waiters {
		if w.wants(r) {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			w.ch <- r
			break
		}
	}
	return nil
}
