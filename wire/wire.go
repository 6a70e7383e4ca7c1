// Package wire implements the JSON framing spoken between the client and
// the wallet daemon.
//
// Every logical message is a single self-delimiting JSON value on the
// stream:
//
//	request       {"id":1,"method":"getbalance","params":[0]}
//	response      {"id":1,"result":500}
//	error         {"id":2,"error":{"code":1,"message":"insufficient funds"}}
//	notification  {"method":"block_applied","params":[1042]}
//
// A streaming decoder consumes exactly one value per read, so no length
// prefix is needed — JSON's own grammar delimits the frame. Writers append
// a newline after each value for readability on the wire; readers never
// depend on it.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Kind classifies a decoded frame.
type Kind byte

const (
	KindRequest      Kind = iota // id + method: needs a response with the same id
	KindResponse                 // id, no method: resolves a request
	KindNotification             // method, no id: out-of-band, never answered
)

// Message is one decoded frame. Only the fields relevant to its Kind
// are populated.
type Message struct {
	Kind   Kind
	ID     uint64
	Method string
	Params []json.RawMessage
	Result json.RawMessage
	Err    *Error
}

// frame is the raw envelope every message shares on the wire.
// ID is a pointer so a present-but-zero id can be told apart from an
// absent one (notifications carry no id at all).
type frame struct {
	ID     *uint64           `json:"id,omitempty"`
	Method string            `json:"method,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage   `json:"result,omitempty"`
	Error  *Error            `json:"error,omitempty"`
}

// Framer encodes and decodes frames over a duplex byte stream.
//
// Reads must come from a single goroutine: the stream is a sequence of
// JSON values and only sequential reads can track value boundaries.
// Writes from multiple goroutines must be serialized by the caller,
// otherwise bytes from different frames interleave and corrupt the
// stream.
type Framer struct {
	dec *json.Decoder
	w   *bufio.Writer
}

// NewFramer wraps an open duplex stream with buffered framing.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{
		dec: json.NewDecoder(bufio.NewReader(rw)),
		w:   bufio.NewWriter(rw),
	}
}

// Read decodes the next frame and classifies it.
// An io error or a frame that fits no Kind is unrecoverable: once the
// decoder loses a value boundary there is no way to resynchronize the
// stream, so the caller must treat any error as fatal for the connection.
func (f *Framer) Read() (*Message, error) {
	var fr frame
	if err := f.dec.Decode(&fr); err != nil {
		return nil, err
	}

	switch {
	case fr.ID != nil && fr.Method != "":
		return &Message{Kind: KindRequest, ID: *fr.ID, Method: fr.Method, Params: fr.Params}, nil

	case fr.ID != nil:
		if fr.Error != nil && len(fr.Result) > 0 {
			return nil, fmt.Errorf("frame id=%d carries both result and error", *fr.ID)
		}
		msg := &Message{Kind: KindResponse, ID: *fr.ID, Result: fr.Result, Err: fr.Error}
		if msg.Err == nil && len(msg.Result) == 0 {
			// {"id":n} with neither field decodes as a null result.
			msg.Result = json.RawMessage("null")
		}
		return msg, nil

	case fr.Method != "":
		return &Message{Kind: KindNotification, Method: fr.Method, Params: fr.Params}, nil

	default:
		return nil, fmt.Errorf("frame has neither id nor method")
	}
}

// WriteRequest sends {"id":id,"method":method,"params":params}.
func (f *Framer) WriteRequest(id uint64, method string, params []json.RawMessage) error {
	return f.write(frame{ID: &id, Method: method, Params: params})
}

// WriteResult sends a success response for id.
func (f *Framer) WriteResult(id uint64, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return f.write(frame{ID: &id, Result: result})
}

// WriteError sends an error response for id.
func (f *Framer) WriteError(id uint64, e *Error) error {
	return f.write(frame{ID: &id, Error: e})
}

// WriteNotification sends an out-of-band message carrying no id.
func (f *Framer) WriteNotification(method string, params []json.RawMessage) error {
	return f.write(frame{Method: method, Params: params})
}

func (f *Framer) write(fr frame) error {
	buf, err := json.Marshal(fr)
	if err != nil {
		return err
	}
	if _, err := f.w.Write(buf); err != nil {
		return err
	}
	if err := f.w.WriteByte('\n'); err != nil {
		return err
	}
	return f.w.Flush()
}

// EncodeParams marshals each argument into its wire representation,
// preserving order.
func EncodeParams(args ...any) ([]json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		buf, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		params = append(params, buf)
	}
	return params, nil
}
