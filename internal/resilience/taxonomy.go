package resilience

import (
	"context"
	"errors"
	"fmt"
)

// DownloadError reports a failed bundle download or unpack. It is fatal for
// document acquisition and is never retried internally.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ConversionError reports a single file that could not be normalized. The
// batch continues without it.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ExtractionParseError reports model output that did not contain a valid
// structured tender analysis.
type ExtractionParseError struct {
	Reason string
	Err    error
}

func (e *ExtractionParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction parse: %s: %v", e.Reason, e.Err)
	}
	return "extraction parse: " + e.Reason
}

func (e *ExtractionParseError) Unwrap() error { return e.Err }

// GatewayError reports a failed or timed-out call to the reasoning or search
// service. Call sites treat it as an empty result.
type GatewayError struct {
	Gateway string
	Op      string
	Timeout bool
	Err     error
}

func (e *GatewayError) Error() string {
	kind := "failure"
	if e.Timeout {
		kind = "timeout"
	}
	return fmt.Sprintf("%s.%s: %s: %v", e.Gateway, e.Op, kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewGatewayError classifies err, marking deadline overruns as timeouts.
func NewGatewayError(gateway, op string, err error) *GatewayError {
	return &GatewayError{
		Gateway: gateway,
		Op:      op,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

// IsTimeout reports whether err is a gateway timeout.
func IsTimeout(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Timeout
}

// StoreWriteError reports a checkpoint that could not be persisted. The
// stage that produced it counts as failed.
type StoreWriteError struct {
	Key  string
	Path string
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s %s: %v", e.Key, e.Path, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// Plain-language stage failure messages.
const (
	MsgDownloadFailed   = "document download/unpack failed"
	MsgNoAnalysis       = "no structured analysis produced"
	MsgNoReport         = "no final report produced"
	MsgStoreFailed      = "tender record could not be saved"
	MsgTenderNotFound   = "tender not found"
	MsgUnexpectedFailed = "tender analysis failed"
)

// ErrTenderNotFound is returned when a registration number is unknown to
// both the store and the discovery feed.
var ErrTenderNotFound = errors.New("tender not found")

// ErrNoReport is returned when report generation produced nothing.
var ErrNoReport = errors.New("final report is empty")

// UserMessage maps a pipeline error to the message shown to operators.
func UserMessage(err error) string {
	var (
		de *DownloadError
		pe *ExtractionParseError
		se *StoreWriteError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &de):
		return MsgDownloadFailed
	case errors.As(err, &pe):
		return MsgNoAnalysis
	case errors.As(err, &se):
		return MsgStoreFailed
	case errors.Is(err, ErrNoReport):
		return MsgNoReport
	case errors.Is(err, ErrTenderNotFound):
		return MsgTenderNotFound
	default:
		return MsgUnexpectedFailed
	}
}
