// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for kiwitrails commands.
//
// Commands always return errors; Execute displays them once and maps them
// to an exit code.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/kiwitrails/internal/chatapi"
	"github.com/jeranaias/kiwitrails/internal/config"
	"github.com/jeranaias/kiwitrails/internal/storage"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a conversation was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted indicates the user cancelled
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports bad arguments or flags.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// ReplyError reports a failed chat request, carrying the result so JSON
// output can include it.
type ReplyError struct {
	Result *chatapi.Result
}

func (e *ReplyError) Error() string {
	if e.Result == nil || e.Result.Error == "" {
		return chatapi.MsgNetworkFailed
	}
	return e.Result.Error
}

func (e *ReplyError) Unwrap() error {
	if e.Result == nil {
		return nil
	}
	return e.Result.Err
}

// ReportedError is a failure whose details were already printed as the
// command's output. Execute exits non-zero without printing it again.
type ReportedError struct {
	Message string
}

func (e *ReportedError) Error() string {
	return e.Message
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes an error in a consistent format.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		output := map[string]any{
			"success":    false,
			"error":      err.Error(),
			"error_type": errorType(err),
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.Encode(output)
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

func errorType(err error) string {
	var usageErr *UsageError
	var validateErrs config.ValidateErrors
	var clientErr *chatapi.ClientError
	switch {
	case errors.As(err, &usageErr):
		return "usage_error"
	case errors.As(err, &validateErrs):
		return "config_error"
	case errors.Is(err, storage.ErrConversationNotFound), errors.Is(err, storage.ErrAmbiguousID):
		return "not_found_error"
	case errors.As(err, &clientErr):
		return clientErr.Type.String()
	default:
		return "generic_error"
	}
}

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var validateErrs config.ValidateErrors
	if errors.As(err, &validateErrs) {
		return ExitConfigError
	}

	if errors.Is(err, storage.ErrConversationNotFound) || errors.Is(err, storage.ErrAmbiguousID) {
		return ExitNotFoundError
	}

	if chatapi.IsAborted(err) {
		return ExitInterrupted
	}

	var clientErr *chatapi.ClientError
	if errors.As(err, &clientErr) && clientErr.Type == chatapi.ErrTypeTransport {
		if clientErr.Message == "request timed out" {
			return ExitTimeoutError
		}
		return ExitNetworkError
	}

	var replyErr *ReplyError
	if errors.As(err, &replyErr) && replyErr.Result != nil && replyErr.Result.Aborted {
		return ExitInterrupted
	}

	return ExitGeneralError
}
