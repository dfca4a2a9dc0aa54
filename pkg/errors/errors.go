// Package errors provides custom error types for the eventflow system.
// Every failure the node or a session can surface maps onto one of the
// kinds below, so callers can classify errors with errors.Is / errors.As
// or KindOf instead of matching on strings.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join are re-exported so callers only need one errors import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Common sentinel errors for the eventflow system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrAPIKeyInvalid indicates that the provided API key is invalid
	ErrAPIKeyInvalid = errors.New("unknown API key")

	// ErrMultipleCurrentEvents indicates that more than one event is ongoing
	ErrMultipleCurrentEvents = errors.New("there are multiple events currently ongoing")

	// ErrAmbiguousTimestamp indicates a local time that occurs twice (DST fold)
	ErrAmbiguousTimestamp = errors.New("ambiguous timestamp")

	// ErrInvalidTimestamp indicates a local time that never occurs (DST gap)
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrNonJSONFile indicates a file in the events directory without a .json suffix
	ErrNonJSONFile = errors.New("events dir contains a non-.json file")

	// ErrEndOfStream indicates the peer closed the stream before a required message
	ErrEndOfStream = errors.New("reached end of stream")

	// ErrLagged indicates a subscriber fell too far behind the delta stream
	ErrLagged = errors.New("subscriber lagged behind the delta stream")

	// ErrNodeStopped indicates the state node is no longer accepting subscribers
	ErrNodeStopped = errors.New("state node stopped")
)

// Kind classifies an error into the system's error taxonomy.
type Kind string

// Error kinds.
const (
	KindUnknown             Kind = "unknown"
	KindDataIntegrity       Kind = "data_integrity"
	KindTimestampResolution Kind = "timestamp_resolution"
	KindLocationLookup      Kind = "location_lookup"
	KindDescriptorLookup    Kind = "descriptor_lookup"
	KindTransport           Kind = "transport"
	KindAuthentication      Kind = "authentication"
	KindVersionLookup       Kind = "version_lookup"
	KindProtocol            Kind = "protocol"
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "rrule", ...
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s error at %s: %s", strings.ToUpper(e.Format), e.File, e.Message)
	}
	return fmt.Sprintf("%s error: %s", strings.ToUpper(e.Format), e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "list", "watch"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("I/O error at %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("I/O error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// DescriptorKind names the collection a descriptor was loaded from.
type DescriptorKind string

// Descriptor collections.
const (
	DescriptorEvent    DescriptorKind = "event"
	DescriptorLocation DescriptorKind = "location"
)

// DescriptorError reports a failure to load or decode an event or location document.
type DescriptorError struct {
	Kind DescriptorKind
	ID   string
	Err  error
}

// Error implements the error interface
func (e *DescriptorError) Error() string {
	return e.Err.Error()
}

// Unwrap implements errors.Unwrap
func (e *DescriptorError) Unwrap() error {
	return e.Err
}

// NewDescriptorError creates a new DescriptorError
func NewDescriptorError(kind DescriptorKind, id string, err error) *DescriptorError {
	return &DescriptorError{Kind: kind, ID: id, Err: err}
}

// NonJSONFileError reports a file in the events directory that is not a descriptor.
type NonJSONFileError struct {
	Filename string
}

// Error implements the error interface
func (e *NonJSONFileError) Error() string {
	return ErrNonJSONFile.Error()
}

// Is implements errors.Is support
func (e *NonJSONFileError) Is(target error) bool {
	return target == ErrNonJSONFile
}

// MultipleCurrentEventsError reports that two or more events qualify as current.
type MultipleCurrentEventsError struct {
	IDs []string
}

// Error implements the error interface
func (e *MultipleCurrentEventsError) Error() string {
	return ErrMultipleCurrentEvents.Error()
}

// Is implements errors.Is support
func (e *MultipleCurrentEventsError) Is(target error) bool {
	return target == ErrMultipleCurrentEvents
}

// AmbiguousTimestampError reports a local time that maps to two instants.
type AmbiguousTimestampError struct {
	Earlier time.Time
	Later   time.Time
}

// Error implements the error interface
func (e *AmbiguousTimestampError) Error() string {
	const layout = "2006-01-02 15:04:05"
	return fmt.Sprintf("ambiguous timestamp: could refer to %s or %s UTC",
		e.Earlier.UTC().Format(layout), e.Later.UTC().Format(layout))
}

// Is implements errors.Is support
func (e *AmbiguousTimestampError) Is(target error) bool {
	return target == ErrAmbiguousTimestamp
}

// InvalidTimestampError reports a local time that does not exist in its zone.
type InvalidTimestampError struct {
	Local string
	Zone  string
}

// Error implements the error interface
func (e *InvalidTimestampError) Error() string {
	return ErrInvalidTimestamp.Error()
}

// Is implements errors.Is support
func (e *InvalidTimestampError) Is(target error) bool {
	return target == ErrInvalidTimestamp
}

// AuthenticationError represents an authentication failure
type AuthenticationError struct {
	Method  string // "api_key"
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrAPIKeyInvalid.Error()
}

// Unwrap implements errors.Unwrap
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAPIKeyInvalid
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(method, message string, err error) *AuthenticationError {
	return &AuthenticationError{
		Method:  method,
		Message: message,
		Err:     err,
	}
}

// TransportError represents a send or receive failure on a client connection.
type TransportError struct {
	Operation string // "read", "write"
	Err       error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("error during websocket %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError
func NewTransportError(operation string, err error) *TransportError {
	return &TransportError{Operation: operation, Err: err}
}

// ProtocolError represents a malformed or unexpected client message.
type ProtocolError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError
func NewProtocolError(message string, err error) *ProtocolError {
	return &ProtocolError{Message: message, Err: err}
}

// VersionError represents a failure to obtain the deployed-code identifier.
type VersionError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *VersionError) Error() string {
	return fmt.Sprintf("git error: %v", e.Err)
}

// Unwrap implements errors.Unwrap
func (e *VersionError) Unwrap() error {
	return e.Err
}

// NewVersionError creates a new VersionError
func NewVersionError(path string, err error) *VersionError {
	return &VersionError{Path: path, Err: err}
}

// LaggedError reports a subscriber that was dropped because its queue filled.
type LaggedError struct {
	Capacity int
}

// Error implements the error interface
func (e *LaggedError) Error() string {
	return fmt.Sprintf("%s (queue capacity %d)", ErrLagged.Error(), e.Capacity)
}

// Is implements errors.Is support
func (e *LaggedError) Is(target error) bool {
	return target == ErrLagged
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsAPIKeyError checks if an error is related to API keys
func IsAPIKeyError(err error) bool {
	return errors.Is(err, ErrAPIKeyInvalid)
}

// KindOf classifies err into the error taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var (
		descErr    *DescriptorError
		nonJSON    *NonJSONFileError
		authErr    *AuthenticationError
		transErr   *TransportError
		protoErr   *ProtocolError
		versionErr *VersionError
	)

	switch {
	case errors.Is(err, ErrMultipleCurrentEvents):
		return KindDataIntegrity
	case errors.Is(err, ErrAmbiguousTimestamp), errors.Is(err, ErrInvalidTimestamp):
		return KindTimestampResolution
	case errors.As(err, &descErr):
		if descErr.Kind == DescriptorLocation {
			return KindLocationLookup
		}
		return KindDescriptorLookup
	case errors.As(err, &nonJSON):
		return KindDescriptorLookup
	case errors.As(err, &versionErr):
		return KindVersionLookup
	case errors.As(err, &authErr):
		return KindAuthentication
	case errors.As(err, &transErr), errors.Is(err, ErrLagged):
		return KindTransport
	case errors.As(err, &protoErr), errors.Is(err, ErrEndOfStream):
		return KindProtocol
	default:
		return KindUnknown
	}
}

// Debug renders the diagnostic form of err: every error in its unwrap
// chain as type(message), outermost first.
func Debug(err error) string {
	if err == nil {
		return ""
	}
	var parts []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		parts = append(parts, fmt.Sprintf("%T(%q)", e, e.Error()))
	}
	return strings.Join(parts, " <- ")
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapDescriptor wraps an error as a DescriptorError
func WrapDescriptor(kind DescriptorKind, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewDescriptorError(kind, id, err)
}

// WrapTransport wraps an error as a TransportError
func WrapTransport(operation string, err error) error {
	if err == nil {
		return nil
	}
	return NewTransportError(operation, err)
}

// WrapVersion wraps an error as a VersionError
func WrapVersion(path string, err error) error {
	if err == nil {
		return nil
	}
	return NewVersionError(path, err)
}
