package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. The router maps kinds to statuses.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindSizeLimit
	KindTypeLimit
	KindAuth
	KindAccess
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSizeLimit:
		return "size_limit"
	case KindTypeLimit:
		return "type_limit"
	case KindAuth:
		return "auth"
	case KindAccess:
		return "access"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// User-facing messages.
const (
	MsgNoFiles          = "No files were uploaded."
	MsgTooLarge         = "File is too large."
	MsgUnsupportedType  = "Unsupported file type."
	MsgContentMismatch  = "Upload rejected: file content did not match image type."
	MsgHEICFailed       = "Could not process HEIC image. Please convert it to JPEG or PNG and try again."
	MsgInvalidDataURL   = "Invalid image data. Expected a base64 data URL."
	MsgInvalidBase64    = "Invalid base64 image data."
	MsgUnsupportedImage = "Unsupported image type."
	MsgMissingPurpose   = "A valid purpose is required."
	MsgStoreFailed      = "Could not store upload. Please try again."
	MsgNotFound         = "Upload not found."
	MsgAuthRequired     = "Authentication required."
	MsgForbidden        = "You do not have access to this upload."
)

// Error is the typed failure returned by every pipeline step. Message is
// safe to show to callers; Err carries the internal cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// TooManyFiles is the validation error for a batch over maxFiles.
func TooManyFiles(maxFiles int) *Error {
	return newError(KindValidation, fmt.Sprintf("Too many files. You can upload up to %d at once.", maxFiles), nil)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error."
}
