// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package replystream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jeranaias/kiwitrails/internal/util"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// DefaultSentinel is the chunk the backend sends to mark end of stream.
	DefaultSentinel = "OK"

	// DefaultReadSize is the size of each transport read.
	DefaultReadSize = 4096

	// logSpanWidth bounds how much of a dropped span is written to the log.
	logSpanWidth = 120
)

// ErrAborted is returned by Run when the caller's context is cancelled.
// The returned error also wraps the context's own error.
var ErrAborted = errors.New("stream aborted")

// textFields are the object fields that carry reply text, in priority order.
var textFields = []string{"data", "content"}

// StreamError is returned by Run when the transport read fails, preserving
// whatever reply text was decoded before the failure.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream read failed (partial reply: %d bytes): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

// Unwrap returns the underlying transport error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// TYPES
// =============================================================================

// Sink receives each non-empty reply fragment, synchronously and in order.
type Sink func(fragment string)

// Status records how a stream ended.
type Status int

const (
	// StatusEOF means the transport closed the body normally.
	StatusEOF Status = iota
	// StatusSentinel means the backend sent the end-of-stream marker.
	StatusSentinel
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusEOF:
		return "eof"
	case StatusSentinel:
		return "sentinel"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of a completed decode session.
type Result struct {
	// Reply is every fragment concatenated in emission order.
	Reply string

	// Fragments is the number of non-empty fragments emitted.
	Fragments int

	// Objects is the number of spans that parsed as JSON.
	Objects int

	// Dropped is the number of spans that failed to parse.
	Dropped int

	Status Status

	// Timing
	Duration          time.Duration
	TimeToFirstOutput time.Duration
}

// Options configures a Decoder. The zero value is usable.
type Options struct {
	// Mode selects the object framing strategy (default ScanNaive).
	Mode ScanMode

	// Sentinel overrides the end-of-stream marker (default "OK").
	Sentinel string

	// ReadSize overrides the transport read size (default 4096).
	ReadSize int

	// Logger receives warnings for dropped spans (default log.Default()).
	Logger *log.Logger
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder holds the state of one streamed reply. It is not safe for
// concurrent use; create one per request.
type Decoder struct {
	mode     ScanMode
	sentinel string
	readSize int
	logger   *log.Logger

	pending string
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	reply strings.Builder

	fragments int
	objects   int
	dropped   int

	startTime     time.Time
	firstFragment time.Time
}

// NewDecoder creates a decoder. A nil opts uses the defaults.
func NewDecoder(opts *Options) *Decoder {
	if opts == nil {
		opts = &Options{}
	}

	d := &Decoder{
		mode:      opts.Mode,
		sentinel:  opts.Sentinel,
		readSize:  opts.ReadSize,
		logger:    opts.Logger,
		startTime: time.Now(),
	}
	if d.sentinel == "" {
		d.sentinel = DefaultSentinel
	}
	if d.readSize <= 0 {
		d.readSize = DefaultReadSize
	}
	if d.logger == nil {
		d.logger = log.Default()
	}
	return d
}

// Feed appends newly arrived text to the pending buffer, emits the fragment
// of every complete object found, and truncates the buffer after the last
// closing brace of the pass. It returns the number of fragments emitted.
//
// Spans that fail to parse are logged and dropped; their text is never
// re-scanned.
func (d *Decoder) Feed(text string, sink Sink) int {
	d.pending += text

	pass := scan(d.pending, d.mode)
	emitted := 0

	for _, sp := range pass.spans {
		raw := d.pending[sp.start:sp.end]

		fragment, err := extractFragment(raw)
		if err != nil {
			d.dropped++
			d.logger.Printf("STREAM_OBJECT_DROPPED | mode=%s span=%q error=%v",
				d.mode, util.TruncateWidth(raw, logSpanWidth), err)
			continue
		}
		d.objects++

		if fragment == "" {
			continue
		}
		if d.firstFragment.IsZero() {
			d.firstFragment = time.Now()
		}
		d.reply.WriteString(fragment)
		d.fragments++
		emitted++
		if sink != nil {
			sink(fragment)
		}
	}

	if pass.cut >= 0 {
		// Clone so the discarded prefix can be collected
		d.pending = strings.Clone(d.pending[pass.cut:])
	}
	return emitted
}

// Run reads r until the sentinel chunk, EOF, a read error, or cancellation
// of ctx, feeding every chunk through Feed.
//
// Bytes are decoded as UTF-8 before scanning; a multi-byte character split
// across two reads is held back until it is complete. Invalid sequences
// decode to U+FFFD.
//
// On cancellation Run returns an error matching ErrAborted and does not call
// sink again. On a transport failure it returns a *StreamError.
func (d *Decoder) Run(ctx context.Context, r io.Reader, sink Sink) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.startTime = time.Now()

	reader := transform.NewReader(r, unicode.UTF8.NewDecoder())
	buf := make([]byte, d.readSize)
	guarded := guardSink(ctx, sink)

	for {
		if err := ctx.Err(); err != nil {
			return nil, d.abort(err)
		}

		n, err := reader.Read(buf)
		if n > 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, d.abort(ctxErr)
			}

			chunk := string(buf[:n])
			if chunk == d.sentinel {
				return d.result(StatusSentinel), nil
			}
			d.Feed(chunk, guarded)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return d.result(StatusEOF), nil
			}
			// A cancelled request surfaces as a body read error
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, d.abort(ctxErr)
			}
			return nil, &StreamError{Partial: d.reply.String(), Err: err}
		}
	}
}

// Pending returns the unterminated text retained for the next pass.
func (d *Decoder) Pending() string {
	return d.pending
}

// Reply returns the reply accumulated so far.
func (d *Decoder) Reply() string {
	return d.reply.String()
}

// Mode returns the decoder's scan mode.
func (d *Decoder) Mode() ScanMode {
	return d.mode
}

// =============================================================================
// HELPERS
// =============================================================================

// result snapshots the decoder state into a Result.
func (d *Decoder) result(status Status) *Result {
	res := &Result{
		Reply:     d.reply.String(),
		Fragments: d.fragments,
		Objects:   d.objects,
		Dropped:   d.dropped,
		Status:    status,
		Duration:  time.Since(d.startTime),
	}
	if !d.firstFragment.IsZero() {
		res.TimeToFirstOutput = d.firstFragment.Sub(d.startTime)
	}
	return res
}

// abort builds the error returned on cancellation.
func (d *Decoder) abort(cause error) error {
	return fmt.Errorf("%w after %d fragments: %w", ErrAborted, d.fragments, cause)
}

// guardSink drops fragments once ctx is cancelled, so the caller never sees
// output after asking to stop.
func guardSink(ctx context.Context, sink Sink) Sink {
	if sink == nil {
		return nil
	}
	return func(fragment string) {
		if ctx.Err() != nil {
			return
		}
		sink(fragment)
	}
}

// extractFragment parses one candidate span and returns its text. The first
// text field holding a non-empty string wins; a parsed object without one
// yields "".
func extractFragment(raw string) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", err
	}

	for _, field := range textFields {
		value, ok := obj[field]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			// Non-string values carry no reply text
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}
