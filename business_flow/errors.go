// Package businessflow contains the core business logic and use cases for the campaign delivery pipeline
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignAccessDenied = errors.New("campaign access denied")
	ErrCampaignNotEditable  = errors.New("campaign cannot be edited in current status")
	ErrCampaignNotDeletable = errors.New("campaign cannot be deleted in current status")
	ErrInvalidTransition    = errors.New("invalid campaign status transition")
	ErrCampaignNameRequired = errors.New("campaign name is required")
	ErrInvalidChannel       = errors.New("campaign channel is invalid")

	// Scheduling errors
	ErrScheduleTimeNotPresent = errors.New("schedule time is not present")
	ErrScheduleTimeNotFuture  = errors.New("schedule time must be in the future")

	// Audience resolution errors
	ErrNoRecipients             = errors.New("targeting yields no valid recipients")
	ErrUnsupportedTargetingType = errors.New("unsupported targeting type")
	ErrRecipientNotFound        = errors.New("recipient not found")

	// Link tagging errors
	ErrShortCodeExhausted = errors.New("unable to allocate unique short code after maximum retries")
	ErrLinkNotFound       = errors.New("link not found")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// TransportError wraps a failure reported by a delivery transport. It is
// per-recipient: the delivery loop records it on the recipient row and moves on.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("transport %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func NewTransportError(provider string, err error) *TransportError {
	return &TransportError{Provider: provider, Err: err}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignNotEditable(err error) bool {
	return errors.Is(err, ErrCampaignNotEditable)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsScheduleTimeNotFuture(err error) bool {
	return errors.Is(err, ErrScheduleTimeNotFuture)
}

func IsNoRecipients(err error) bool {
	return errors.Is(err, ErrNoRecipients)
}

func IsUnsupportedTargetingType(err error) bool {
	return errors.Is(err, ErrUnsupportedTargetingType)
}

func IsShortCodeExhausted(err error) bool {
	return errors.Is(err, ErrShortCodeExhausted)
}

func IsLinkNotFound(err error) bool {
	return errors.Is(err, ErrLinkNotFound)
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
