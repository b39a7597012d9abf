package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTransportCreation  = errors.New("transport creation failed")
	ErrParse              = errors.New("malformed frame")
	ErrValidation         = errors.New("invalid message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("no bid recorded")
)

type TransportCreationError struct {
	Endpoint string
	Err      error
}

func (e *TransportCreationError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("%v: %v", ErrTransportCreation, e.Err)
	}
	return fmt.Sprintf("%v for %s: %v", ErrTransportCreation, e.Endpoint, e.Err)
}

func (e *TransportCreationError) Unwrap() error { return e.Err }

func (e *TransportCreationError) Is(target error) bool { return target == ErrTransportCreation }

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrParse, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationError reports a well-formed frame with a missing or invalid field.
type ValidationError struct {
	MessageType string
	Field       string
	Reason      string
}

func (e *ValidationError) Error() string {
	if e.MessageType == "" {
		return fmt.Sprintf("%v: %s %s", ErrValidation, e.Field, e.Reason)
	}
	return fmt.Sprintf("%v: %s.%s %s", ErrValidation, e.MessageType, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type UnknownMessageTypeError struct {
	Tag string
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownMessageType, e.Tag)
}

func (e *UnknownMessageTypeError) Is(target error) bool { return target == ErrUnknownMessageType }

type ReconnectExhaustedError struct {
	Attempts int
}

func (e *ReconnectExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts", ErrReconnectExhausted, e.Attempts)
}

func (e *ReconnectExhaustedError) Is(target error) bool { return target == ErrReconnectExhausted }
