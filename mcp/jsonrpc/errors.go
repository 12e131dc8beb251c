package jsonrpc

import (
	"errors"
	"fmt"
)

type ErrorCode int

// JSON-RPC 2.0 error codes
const (
	ErrParseError     ErrorCode = -32700
	ErrInvalidRequest ErrorCode = -32600
	ErrMethodNotFound ErrorCode = -32601
	ErrInvalidParams  ErrorCode = -32602
	ErrInternalError  ErrorCode = -32603
)

// ProtocolError carries a JSON-RPC error code through Go error returns.
type ProtocolError struct {
	Code    ErrorCode
	Message string
	Data    any
}

func NewProtocolError(code ErrorCode, message string, data any) *ProtocolError {
	return &ProtocolError{Code: code, Message: message, Data: data}
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return "jsonrpc error"
	}
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// ToResponse renders the error as a response to the given request ID.
func (e *ProtocolError) ToResponse(id any) *Response {
	return NewErrorResponse(id, e.Code, e.Message, e.Data)
}

// IsError checks if err is a ProtocolError with the given code.
func IsError(err error, code ErrorCode) bool {
	var e *ProtocolError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsInvalidParams(err error) bool {
	return IsError(err, ErrInvalidParams)
}
