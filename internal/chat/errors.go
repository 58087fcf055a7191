package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/Rrens/bloombuddy/internal/domain"
)

var (
	// ErrBusy is returned when a submission arrives while another send is in flight
	ErrBusy = errors.New("chat: a message is already being sent")
	// ErrEmptyMessage is returned for blank submissions
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrUnknownTopic is returned when opening a topic the catalog does not know
	ErrUnknownTopic = errors.New("chat: unknown topic")
	// ErrNoSession is returned when no topic is open
	ErrNoSession = errors.New("chat: no topic is open")
	// ErrOffline marks a queued delivery that failed because connectivity is gone
	ErrOffline = errors.New("chat: offline")
	// ErrInvalidReply is returned when the endpoint answers without a usable message
	ErrInvalidReply = errors.New("chat: invalid response format from server")
	// ErrHistoryUnavailable is returned when the backend cannot browse archived conversations
	ErrHistoryUnavailable = errors.New("chat: conversation history is not available")
)

// Kind classifies a failed send
type Kind string

const (
	KindValidation  Kind = "validation"
	KindRateLimited Kind = "rate_limited"
	KindService     Kind = "service"
	KindNetwork     Kind = "network"
	KindStorage     Kind = "storage"
)

// User-facing failure texts
const (
	msgRateLimited = "You're sending messages too quickly. Please wait a moment and try again."
	msgService     = "Our chat service is having trouble right now. Please try again in a few moments."
	msgNetwork     = "Connection error. Please check your internet and try again."
	msgTimeout     = "The server took too long to answer. Please try again in a moment."
	msgValidation  = "Your message could not be processed. Please rephrase and try again."
	msgStorage     = "Your message could not be saved for later. Please try again."
)

// Failure is the normalized shape every failed attempt is reported in
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Classify maps any error from the remote call path to a Failure. Validation
// messages from the endpoint are shown verbatim; everything else gets a fixed
// text so internal detail never reaches the user.
func Classify(err error) Failure {
	var epErr *domain.EndpointError
	if errors.As(err, &epErr) {
		switch {
		case epErr.Status == http.StatusBadRequest:
			msg := epErr.Message
			if msg == "" {
				msg = msgValidation
			}
			return Failure{Kind: KindValidation, Message: msg, Err: err}
		case epErr.Status == http.StatusTooManyRequests:
			return Failure{Kind: KindRateLimited, Message: msgRateLimited, Err: err}
		default:
			return Failure{Kind: KindService, Message: msgService, Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Failure{Kind: KindNetwork, Message: msgTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Failure{Kind: KindNetwork, Message: msgTimeout, Err: err}
		}
		return Failure{Kind: KindNetwork, Message: msgNetwork, Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return Failure{Kind: KindNetwork, Message: msgNetwork, Err: err}
	}

	return Failure{Kind: KindService, Message: msgService, Err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a delivery error that retrying can never fix
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
