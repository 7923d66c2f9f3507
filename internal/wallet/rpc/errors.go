package rpc

import (
	"encoding/json"
	"fmt"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// TransportError covers everything that kept a call from producing a JSON-RPC
// response: connection failures, timeouts and non-2xx HTTP statuses.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodingError is a response whose result is missing or malformed.
type DecodingError struct {
	Method string
	Err    error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("%s: decoding error: %v", e.Method, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

func classify(method string, err error) error {
	if err == nil {
		return nil
	}

	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		out := &RPCError{Method: method, Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}

		var dataErr gethrpc.DataError
		if errors.As(err, &dataErr) {
			out.Data = dataErr.ErrorData()
		}

		return out
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, gethrpc.ErrNoResult) {
		return &DecodingError{Method: method, Err: err}
	}

	return &TransportError{Method: method, Err: err}
}

func outcome(err error) string {
	var (
		rpcErr      *RPCError
		decodingErr *DecodingError
	)

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rpcErr):
		return "rpc_error"
	case errors.As(err, &decodingErr):
		return "decoding_error"
	default:
		return "transport_error"
	}
}
