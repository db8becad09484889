// Package protocol defines the transport-agnostic request/response values
// exchanged between a client.Client and a server.Server, and their canonical
// JSON wire encoding (spec.md §6).
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/kubaliski/cycletimer/timer"
)

// Kind tags the variant carried by a Request or Response.
type Kind string

const (
	KindStart       Kind = "start"
	KindGet         Kind = "get"
	KindPause       Kind = "pause"
	KindResume      Kind = "resume"
	KindStop        Kind = "stop"
	KindSetDuration Kind = "set_duration"
	KindStats       Kind = "stats" // supplemental request, see SPEC_FULL.md §12
)

// Request is one RPC call. Params is required for SetDuration; other kinds
// ignore it (a decoded request keeps any params it carried).
type Request struct {
	Kind   Kind              `json:"kind"`
	Params *RequestParams    `json:"params,omitempty"`
}

// RequestParams carries SetDuration's single argument. A struct (rather than
// a bare field on Request) keeps the wire shape stable if future request
// kinds need parameters of their own.
type RequestParams struct {
	Seconds uint32 `json:"seconds,omitempty"`
}

// NewSetDuration builds the SetDuration request for seconds.
func NewSetDuration(seconds uint32) Request {
	return Request{Kind: KindSetDuration, Params: &RequestParams{Seconds: seconds}}
}

// Simple request constructors for the parameterless requests.
func NewStart() Request  { return Request{Kind: KindStart} }
func NewGet() Request    { return Request{Kind: KindGet} }
func NewPause() Request  { return Request{Kind: KindPause} }
func NewResume() Request { return Request{Kind: KindResume} }
func NewStop() Request   { return Request{Kind: KindStop} }
func NewStats() Request  { return Request{Kind: KindStats} }

// Validate checks that Params is present exactly when the request kind
// requires it, and that any Params are themselves well-formed.
func (r Request) Validate() error {
	switch r.Kind {
	case KindSetDuration:
		if r.Params == nil {
			return DecodeError{Reason: "set_duration requires params.seconds"}
		}
		if r.Params.Seconds < 1 {
			return DecodeError{Reason: "set_duration seconds must be at least 1"}
		}
	case KindStart, KindGet, KindPause, KindResume, KindStop, KindStats:
		// no params expected; extra params are ignored rather than rejected
	default:
		return DecodeError{Reason: fmt.Sprintf("unknown request kind %q", r.Kind)}
	}
	return nil
}

// ErrorCode enumerates the machine-readable error tags carried by an Err
// Response.
type ErrorCode string

const (
	CodeConfigError     ErrorCode = "config_error"
	CodeStateError      ErrorCode = "state_error"
	CodeDecodeError     ErrorCode = "decode_error"
	CodeFrameTooLarge   ErrorCode = "frame_too_large"
	CodeEndOfStream     ErrorCode = "end_of_stream"
	CodeTransportError  ErrorCode = "transport_error"
	CodeHookFatal       ErrorCode = "hook_fatal"
	CodeReentrancy      ErrorCode = "reentrancy_error"
	CodeInternal        ErrorCode = "internal_error"
)

// DecodeError reports a malformed request payload.
type DecodeError struct{ Reason string }

func (e DecodeError) Error() string { return "decode error: " + e.Reason }

// Response is the single reply to a Request: exactly one of Snapshot or
// Error is populated.
type Response struct {
	Ok       bool             `json:"ok"`
	Snapshot *SnapshotView    `json:"snapshot,omitempty"`
	Stats    *StatsView       `json:"stats,omitempty"`
	Error    *ErrorView       `json:"error,omitempty"`
}

// ErrorView is the wire shape of Response.Error.
type ErrorView struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SnapshotView is the wire-serializable projection of timer.Snapshot: plain
// data, independent of the timer package's in-memory representation.
type SnapshotView struct {
	State           string       `json:"state"`
	CycleName       string       `json:"cycle_name"`
	CycleDuration   uint32       `json:"cycle_duration_seconds"`
	ElapsedSeconds  uint32       `json:"elapsed_seconds"`
	LoopKind        string       `json:"loop_kind"`
	LoopRemaining   uint32       `json:"loop_remaining,omitempty"`
	TickIntervalMS  int64        `json:"tick_interval_ms"`
	Cycles          []CycleView  `json:"cycles"`
}

// CycleView is the wire shape of a timer.Cycle.
type CycleView struct {
	Name            string `json:"name"`
	DurationSeconds uint32 `json:"duration_seconds"`
}

// StatsView is the wire shape of a stats.Snapshot; defined here (rather than
// imported from package stats) to keep the wire protocol's dependency
// surface limited to timer and itself.
type StatsView struct {
	Completed     map[string]uint64 `json:"completed"`
	Skipped       map[string]uint64 `json:"skipped"`
	CurrentStreak uint32            `json:"current_streak"`
	BestStreak    uint32            `json:"best_streak"`
	ActiveSeconds uint64            `json:"active_seconds"`
}

// ToSnapshotView projects a timer.Snapshot onto its wire representation.
func ToSnapshotView(s timer.Snapshot) *SnapshotView {
	cycles := make([]CycleView, len(s.Cycles))
	for i, c := range s.Cycles {
		cycles[i] = CycleView{Name: c.Name, DurationSeconds: c.DurationSeconds}
	}
	loopKind := "infinite"
	var remaining uint32
	if s.CyclesCount.Kind == timer.LoopFixed {
		loopKind = "fixed"
		remaining = s.CyclesCount.N
	}
	return &SnapshotView{
		State:          s.State.String(),
		CycleName:      s.Cycle.Name,
		CycleDuration:  s.Cycle.DurationSeconds,
		ElapsedSeconds: s.ElapsedSeconds,
		LoopKind:       loopKind,
		LoopRemaining:  remaining,
		TickIntervalMS: s.TickInterval.Milliseconds(),
		Cycles:         cycles,
	}
}

// OkResponse builds a successful Response carrying a timer snapshot.
func OkResponse(s timer.Snapshot) Response {
	return Response{Ok: true, Snapshot: ToSnapshotView(s)}
}

// OkStatsResponse builds a successful Response carrying a stats snapshot,
// for the supplemental Stats request.
func OkStatsResponse(s timer.Snapshot, stats StatsView) Response {
	r := OkResponse(s)
	r.Stats = &stats
	return r
}

// ErrResponse builds a failed Response with the given code and message.
func ErrResponse(code ErrorCode, message string) Response {
	return Response{Ok: false, Error: &ErrorView{Code: code, Message: message}}
}

// Marshal/Unmarshal below are the canonical codec used by transport
// implementations to turn a Request/Response into/from the bytes carried in
// one frame (spec.md §6: "payload = UTF-8 text encoding a single Request or
// Response value").

// MarshalRequest encodes r as the JSON payload of one frame.
func MarshalRequest(r Request) ([]byte, error) { return json.Marshal(r) }

// UnmarshalRequest decodes one frame's payload into a Request and validates
// it, returning DecodeError for both malformed JSON and a semantically
// invalid request.
func UnmarshalRequest(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, DecodeError{Reason: err.Error()}
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// MarshalResponse encodes resp as the JSON payload of one frame.
func MarshalResponse(resp Response) ([]byte, error) { return json.Marshal(resp) }

// UnmarshalResponse decodes one frame's payload into a Response.
func UnmarshalResponse(data []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return Response{}, DecodeError{Reason: err.Error()}
	}
	return r, nil
}
