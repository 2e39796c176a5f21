// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"errors"
	"net/http"
	"strconv"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the chat API client.
type ClientError struct {
	Type    ErrorType
	Message string

	// StatusCode is set for ErrTypeHTTPStatus errors.
	StatusCode int

	Cause error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeInvalidRequest
	ErrTypeTransport
	ErrTypeHTTPStatus
	ErrTypeResponseFormat
	ErrTypeAborted
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidRequest:
		return "invalid_request"
	case ErrTypeTransport:
		return "transport"
	case ErrTypeHTTPStatus:
		return "http_status"
	case ErrTypeResponseFormat:
		return "response_format"
	case ErrTypeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Messages surfaced to the user.
const (
	MsgCancelled        = "User actively cancelled"
	MsgNetworkFailed    = "Network request failed"
	MsgUnclearQuestion  = "Sorry, I cannot understand your question."
	MsgResponseFormat   = "Response format error"
	MsgUnparseableJSON  = "Response format error, unable to parse JSON"
	MsgInvalidHistory   = "conversation history must be a list"
	MsgNotFound         = "Interface not found (404)"
	MsgInternalError    = "Internal server error"
	MsgBadRequest       = "Request parameter error"
	MsgValidationFailed = "Parameter validation failed"
)

// Sentinel errors for easy checking.
var (
	ErrAborted        = &ClientError{Type: ErrTypeAborted, Message: MsgCancelled}
	ErrInvalidHistory = &ClientError{Type: ErrTypeInvalidRequest, Message: MsgInvalidHistory}
)

// =============================================================================
// STATUS MAPPING
// =============================================================================

// statusError maps a non-2xx status and the msg field of its error body to
// a ClientError.
func statusError(status int, bodyMsg string) *ClientError {
	var msg string
	switch status {
	case http.StatusNotFound:
		msg = MsgNotFound
	case http.StatusInternalServerError, http.StatusNotImplemented, http.StatusBadGateway:
		msg = MsgInternalError
	case http.StatusBadRequest:
		msg = MsgBadRequest
	case http.StatusUnprocessableEntity:
		msg = bodyMsg
		if msg == "" {
			msg = MsgValidationFailed
		}
	default:
		msg = bodyMsg
		if msg == "" {
			msg = "HTTP error " + strconv.Itoa(status)
		}
	}
	return &ClientError{Type: ErrTypeHTTPStatus, Message: msg, StatusCode: status}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func isType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// IsAborted checks if an error means the caller cancelled the request.
func IsAborted(err error) bool {
	return isType(err, ErrTypeAborted)
}

// IsHTTPStatus checks if an error came from a non-2xx response.
func IsHTTPStatus(err error) bool {
	return isType(err, ErrTypeHTTPStatus)
}

// IsTransport checks if an error is a connection or read failure.
func IsTransport(err error) bool {
	return isType(err, ErrTypeTransport)
}

// IsResponseFormat checks if an error means the body could not be decoded.
func IsResponseFormat(err error) bool {
	return isType(err, ErrTypeResponseFormat)
}

// IsInvalidRequest checks if an error was raised before any request was sent.
func IsInvalidRequest(err error) bool {
	return isType(err, ErrTypeInvalidRequest)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}
