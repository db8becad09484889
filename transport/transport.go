// Package transport defines the transport-agnostic capability interfaces a
// server.Server binds to and a client.Client connects through (spec.md
// §4.5), plus the shared length-prefixed frame codec used by every
// transport that speaks the reference wire protocol (spec.md §6).
package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kubaliski/cycletimer/protocol"
)

// MaxFrameLength is the largest payload, in bytes, a frame may carry.
// Exceeding it is reported as FrameTooLargeError and the connection is
// terminated (spec.md §6).
const MaxFrameLength = 65536

// FrameTooLargeError reports a frame length outside 1..MaxFrameLength: a
// length exceeding MaxFrameLength, or a zero length.
type FrameTooLargeError struct{ Length uint32 }

func (e FrameTooLargeError) Error() string {
	return fmt.Sprintf("transport: frame length %d outside allowed range 1..%d", e.Length, MaxFrameLength)
}

// RequestReader decodes one Request at a time from a byte stream.
type RequestReader interface {
	ReadRequest() (protocol.Request, error)
}

// RequestWriter encodes and flushes one Request at a time.
type RequestWriter interface {
	WriteRequest(protocol.Request) error
}

// ResponseReader decodes one Response at a time from a byte stream.
type ResponseReader interface {
	ReadResponse() (protocol.Response, error)
}

// ResponseWriter encodes and flushes one Response at a time.
type ResponseWriter interface {
	WriteResponse(protocol.Response) error
}

// ServerConn is what a server handler reads requests from and writes
// responses to: one accepted connection.
type ServerConn interface {
	RequestReader
	ResponseWriter
	Close() error
}

// ClientConn is what a client issues requests through and reads responses
// from: one established connection.
type ClientConn interface {
	RequestWriter
	ResponseReader
	Close() error
}

// ServerBind accepts a sequence of connections duplex-capable per ServerConn.
// Accept returns context.Canceled (possibly wrapped) once ctx is done, so a
// server's accept loop can distinguish shutdown from a real I/O error.
type ServerBind interface {
	Accept(ctx context.Context) (ServerConn, error)
	Addr() string
	Close() error
}

// ClientConnect establishes one ClientConn to a bound ServerBind's address.
type ClientConnect interface {
	Connect(ctx context.Context) (ClientConn, error)
}

// FrameReader reads length-prefixed frames off r: a u32-be length followed by
// exactly that many payload bytes.
type FrameReader struct {
	br *bufio.Reader
}

// NewFrameReader wraps r for frame-at-a-time reading.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{br: bufio.NewReader(r)}
}

// ReadFrame returns the next frame's payload, or io.EOF at a clean stream
// end, or FrameTooLargeError if the length prefix is zero or exceeds
// MaxFrameLength.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.br, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 || length > MaxFrameLength {
		return nil, FrameTooLargeError{Length: length}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.br, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FrameWriter writes length-prefixed frames to w.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w for frame-at-a-time writing.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one frame carrying payload. Empty and larger-than-max
// payloads are a programmer error (the protocol layer should never produce
// one) and are reported as FrameTooLargeError rather than silently truncated.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) == 0 || len(payload) > MaxFrameLength {
		return FrameTooLargeError{Length: uint32(len(payload))}
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := fw.w.Write(payload)
	return err
}

// Framer combines a FrameReader/FrameWriter with the protocol codec to
// implement RequestReader, RequestWriter, ResponseReader, and
// ResponseWriter over any io.ReadWriter. A transport's connection type
// embeds Framer plus its own Close, satisfying both ServerConn and
// ClientConn without reimplementing framing or JSON encoding.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer wraps rw for frame-at-a-time request/response I/O.
func NewFramer(rw io.ReadWriter) Framer {
	return Framer{FrameReader: NewFrameReader(rw), FrameWriter: NewFrameWriter(rw)}
}

func (f Framer) ReadRequest() (protocol.Request, error) {
	payload, err := f.ReadFrame()
	if err != nil {
		return protocol.Request{}, err
	}
	return protocol.UnmarshalRequest(payload)
}

func (f Framer) WriteRequest(r protocol.Request) error {
	payload, err := protocol.MarshalRequest(r)
	if err != nil {
		return err
	}
	return f.WriteFrame(payload)
}

func (f Framer) ReadResponse() (protocol.Response, error) {
	payload, err := f.ReadFrame()
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.UnmarshalResponse(payload)
}

func (f Framer) WriteResponse(resp protocol.Response) error {
	payload, err := protocol.MarshalResponse(resp)
	if err != nil {
		return err
	}
	return f.WriteFrame(payload)
}
