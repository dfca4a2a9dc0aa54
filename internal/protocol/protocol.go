// Package protocol encodes the messages exchanged with clients.
//
// Binary messages are msgpack arrays whose first element is the variant tag:
//
//	[0]                    Ping
//	[1, debug, display]    Error
//	[2]                    NoEvent
//	[3, id, timezone]      CurrentEvent
//	[4, bin(20)]           LatestVersion
//
// A client opens a session with two messages: a credential string, then an
// unsigned purpose tag.
package protocol

import (
	"context"
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/events"
	"github.com/agentstation/eventflow/pkg/state"
)

// Conn is a message-oriented duplex channel to one client.
type Conn interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, msg []byte) error
	Close() error
}

// Purpose selects the subsystem a session is routed to.
type Purpose uint8

// Session purposes.
const (
	PurposeGame Purpose = iota
	PurposeCurrentEvent
)

func (p Purpose) String() string {
	switch p {
	case PurposeGame:
		return "game"
	case PurposeCurrentEvent:
		return "current_event"
	default:
		return fmt.Sprintf("Purpose(%d)", uint8(p))
	}
}

var handle = newHandle()

func newHandle() *codec.MsgpackHandle {
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true // str/bin distinction on the wire
	mh.RawToString = true
	return mh
}

func encode(v any) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, handle).Encode(v); err != nil {
		return nil, errors.WrapParse("msgpack", "", err)
	}
	return out, nil
}

// EncodeDelta encodes d for the wire.
func EncodeDelta(d state.Delta) ([]byte, error) {
	var v []any
	switch d.Kind {
	case state.KindPing, state.KindNoEvent:
		v = []any{uint8(d.Kind)}
	case state.KindError:
		v = []any{uint8(d.Kind), d.Debug, d.Display}
	case state.KindCurrentEvent:
		v = []any{uint8(d.Kind), d.Event.ID, d.Event.Timezone}
	case state.KindLatestVersion:
		v = []any{uint8(d.Kind), d.Version[:]}
	default:
		return nil, errors.NewProtocolError(fmt.Sprintf("unknown delta kind %d", d.Kind), nil)
	}
	return encode(v)
}

// DecodeDelta is the inverse of EncodeDelta.
func DecodeDelta(msg []byte) (state.Delta, error) {
	var v []any
	if err := codec.NewDecoderBytes(msg, handle).Decode(&v); err != nil {
		return state.Delta{}, errors.NewProtocolError("malformed delta", err)
	}
	if len(v) == 0 {
		return state.Delta{}, errors.NewProtocolError("empty delta", nil)
	}
	tag, err := asUint(v[0])
	if err != nil {
		return state.Delta{}, err
	}

	kind := state.DeltaKind(tag)
	want := map[state.DeltaKind]int{
		state.KindPing:          1,
		state.KindError:         3,
		state.KindNoEvent:       1,
		state.KindCurrentEvent:  3,
		state.KindLatestVersion: 2,
	}
	n, ok := want[kind]
	if !ok || tag > 255 {
		return state.Delta{}, errors.NewProtocolError(fmt.Sprintf("unknown delta tag %d", tag), nil)
	}
	if len(v) != n {
		return state.Delta{}, errors.NewProtocolError(fmt.Sprintf("%s delta has %d fields, want %d", kind, len(v), n), nil)
	}

	switch kind {
	case state.KindPing:
		return state.Ping(), nil
	case state.KindNoEvent:
		return state.NoEvent(), nil
	case state.KindError:
		debug, err := asString(v[1])
		if err != nil {
			return state.Delta{}, err
		}
		display, err := asString(v[2])
		if err != nil {
			return state.Delta{}, err
		}
		return state.Delta{Kind: state.KindError, Debug: debug, Display: display}, nil
	case state.KindCurrentEvent:
		id, err := asString(v[1])
		if err != nil {
			return state.Delta{}, err
		}
		tz, err := asString(v[2])
		if err != nil {
			return state.Delta{}, err
		}
		return state.CurrentEvent(events.ResolvedEvent{ID: id, Timezone: tz}), nil
	default:
		b, err := asBytes(v[1])
		if err != nil {
			return state.Delta{}, err
		}
		var ver state.Version
		if len(b) != len(ver) {
			return state.Delta{}, errors.NewProtocolError(fmt.Sprintf("version has %d bytes, want %d", len(b), len(ver)), nil)
		}
		copy(ver[:], b)
		return state.LatestVersion(ver), nil
	}
}

// EncodeCredential encodes the first client message.
func EncodeCredential(credential string) ([]byte, error) {
	return encode(credential)
}

// DecodeCredential decodes the first client message.
func DecodeCredential(msg []byte) (string, error) {
	var v any
	if err := codec.NewDecoderBytes(msg, handle).Decode(&v); err != nil {
		return "", errors.NewProtocolError("malformed credential", err)
	}
	return asString(v)
}

// EncodePurpose encodes the second client message.
func EncodePurpose(p Purpose) ([]byte, error) {
	return encode(uint8(p))
}

// DecodePurpose decodes the second client message. Unknown tags are a
// ProtocolError.
func DecodePurpose(msg []byte) (Purpose, error) {
	var v any
	if err := codec.NewDecoderBytes(msg, handle).Decode(&v); err != nil {
		return 0, errors.NewProtocolError("malformed session purpose", err)
	}
	tag, err := asUint(v)
	if err != nil {
		return 0, err
	}
	if tag <= uint64(PurposeCurrentEvent) {
		return Purpose(tag), nil
	}
	return 0, errors.NewProtocolError(fmt.Sprintf("unknown session purpose %d", tag), nil)
}

func asUint(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case uint8:
		return uint64(n), nil
	case int8:
		if n >= 0 {
			return uint64(n), nil
		}
	}
	return 0, errors.NewProtocolError(fmt.Sprintf("expected unsigned integer, got %T", v), nil)
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", errors.NewProtocolError(fmt.Sprintf("expected string, got %T", v), nil)
}

func asBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, errors.NewProtocolError(fmt.Sprintf("expected bytes, got %T", v), nil)
}
