package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBadAudio marks caller errors (unsupported format, oversize
	// payload) that must never reach a provider.
	ErrBadAudio = errors.New("bad audio input")
	// ErrUnavailable is surfaced when the transient retry budget is
	// exhausted.
	ErrUnavailable = errors.New("transcription unavailable")
)

type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindFatal     ErrorKind = "fatal"
)

// ProviderError classifies a provider failure. Transient failures are worth
// retrying; fatal ones are not.
type ProviderError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s failure (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s failure: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func Transient(status int, err error) *ProviderError {
	return &ProviderError{Kind: KindTransient, Status: status, Err: err}
}

func Fatal(status int, err error) *ProviderError {
	return &ProviderError{Kind: KindFatal, Status: status, Err: err}
}

// Request is one transcription call's input.
type Request struct {
	Audio    []byte
	Filename string
	Format   string
}

// Provider performs a single speech-to-text call. Retry is the controller's
// concern, not the provider's.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (string, error)
	Name() string
}

// supportedFormats lists the audio containers the upstream transcription
// services accept.
var supportedFormats = map[string]bool{
	"mp3":  true,
	"mp4":  true,
	"mpeg": true,
	"mpga": true,
	"m4a":  true,
	"wav":  true,
	"webm": true,
}

func SupportedFormat(format string) bool {
	return supportedFormats[strings.ToLower(strings.TrimSpace(format))]
}

// ValidateRequest rejects unsupported or oversized audio before any provider
// attempt is made.
func ValidateRequest(req Request, maxBytes int64) error {
	if len(req.Audio) == 0 {
		return fmt.Errorf("%w: empty payload", ErrBadAudio)
	}
	if !SupportedFormat(req.Format) {
		return fmt.Errorf("%w: unsupported format %q", ErrBadAudio, req.Format)
	}
	if maxBytes > 0 && int64(len(req.Audio)) > maxBytes {
		return fmt.Errorf("%w: payload %d bytes exceeds limit %d", ErrBadAudio, len(req.Audio), maxBytes)
	}
	return nil
}
