package transport

import (
	"github.com/pkg/errors"
	"github.com/xiaonanln/worldlink/engine/errs"
	"github.com/xiaonanln/worldlink/engine/wire"
)

// ControlOp is the varint op-code of a control frame on stream 0 (spec.md 6).
// Grounded on goworld's engine/proto.MsgType iota enum, generalized from
// goworld's dozens of RPC message types down to the five control ops
// spec.md 6 names.
type ControlOp uint64

const (
	// OpOpen announces a new outbound stream.
	OpOpen ControlOp = iota
	// OpClose half-closes a stream from the sender's side.
	OpClose
	// OpPing carries an opaque nonce to be echoed back.
	OpPing
	// OpPong echoes a Ping's nonce.
	OpPong
	// OpGoAway announces the peer is tearing down the connection.
	OpGoAway
)

// ErrUnknownControlOp is a Protocol error for an unrecognized control op-code.
var ErrUnknownControlOp = errors.New("transport: unknown control op-code")

// ControlFrame is a decoded stream-0 message (spec.md 6).
type ControlFrame struct {
	Op         ControlOp
	StreamId   wire.StreamId // OpOpen, OpClose
	Nonce      uint64        // OpPing, OpPong
	ReasonCode uint64        // OpGoAway
}

// EncodeControlFrame serializes a ControlFrame's payload (the op-code plus
// its op-specific fields, all as varints per spec.md 6).
func EncodeControlFrame(f ControlFrame) ([]byte, error) {
	var buf []byte
	var err error
	buf, err = wire.AppendVarint(buf, uint64(f.Op))
	if err != nil {
		return nil, err
	}

	switch f.Op {
	case OpOpen, OpClose:
		buf, err = wire.AppendVarint(buf, uint64(f.StreamId))
	case OpPing, OpPong:
		buf, err = wire.AppendVarint(buf, f.Nonce)
	case OpGoAway:
		buf, err = wire.AppendVarint(buf, f.ReasonCode)
	default:
		return nil, ErrUnknownControlOp
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeControlFrame parses a control frame payload produced by
// EncodeControlFrame.
func DecodeControlFrame(payload []byte) (ControlFrame, error) {
	opVal, n, err := wire.ReadVarint(payload)
	if err != nil {
		return ControlFrame{}, errs.New(errs.Protocol, err)
	}
	rest := payload[n:]

	f := ControlFrame{Op: ControlOp(opVal)}
	switch f.Op {
	case OpOpen, OpClose:
		sid, _, err := wire.ReadVarint(rest)
		if err != nil {
			return ControlFrame{}, errs.New(errs.Protocol, err)
		}
		f.StreamId = wire.StreamId(sid)
	case OpPing, OpPong:
		nonce, _, err := wire.ReadVarint(rest)
		if err != nil {
			return ControlFrame{}, errs.New(errs.Protocol, err)
		}
		f.Nonce = nonce
	case OpGoAway:
		reason, _, err := wire.ReadVarint(rest)
		if err != nil {
			return ControlFrame{}, errs.New(errs.Protocol, err)
		}
		f.ReasonCode = reason
	default:
		return ControlFrame{}, errs.New(errs.Protocol, ErrUnknownControlOp)
	}
	return f, nil
}
