package wire

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/annelo/ghosttag/internal/lobby"
)

// JoinFailed builds the reply to a create or join the lobby refused.
func JoinFailed(room string, err error) *Frame {
	return &Frame{Op: OpJoinFailed, Room: room, Status: uint32(codeOf(err)), Error: err.Error()}
}

// Err turns a JoinFailed frame back into an error matching the lobby
// sentinels with errors.Is. Frames without a status yield nil.
func (f *Frame) Err() error {
	if f.Status == uint32(codes.OK) {
		return nil
	}
	code := codes.Code(f.Status)
	var base error
	switch code {
	case codes.NotFound:
		base = lobby.ErrRoomNotFound
	case codes.ResourceExhausted:
		base = lobby.ErrRoomFull
	case codes.AlreadyExists:
		base = lobby.ErrRoomExists
	case codes.FailedPrecondition:
		base = lobby.ErrAlreadyInRoom
	default:
		return status.Error(code, f.Error)
	}
	return &remoteError{base: base, msg: f.Error}
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, lobby.ErrRoomNotFound):
		return codes.NotFound
	case errors.Is(err, lobby.ErrRoomFull):
		return codes.ResourceExhausted
	case errors.Is(err, lobby.ErrRoomExists):
		return codes.AlreadyExists
	case errors.Is(err, lobby.ErrAlreadyInRoom):
		return codes.FailedPrecondition
	}
	return codes.Internal
}

type remoteError struct {
	base error
	msg  string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.base }
