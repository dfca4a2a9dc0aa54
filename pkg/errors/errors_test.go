package errors_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/eventflow/pkg/errors"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "location",
			ID:       "berlin",
		}
		assert.Equal(t, "location with ID berlin not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped in descriptor error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("location", "berlin")
		wrapped := pkgerrors.WrapDescriptor(pkgerrors.DescriptorLocation, "berlin", base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
		assert.Equal(t, pkgerrors.KindLocationLookup, pkgerrors.KindOf(wrapped))
	})
}

func TestParseError(t *testing.T) {
	t.Run("with file", func(t *testing.T) {
		err := pkgerrors.NewParseError("json", "/data/loc/x.json", "unexpected end of JSON input", nil)
		assert.Equal(t, "JSON error at /data/loc/x.json: unexpected end of JSON input", err.Error())
	})

	t.Run("without file", func(t *testing.T) {
		err := pkgerrors.NewParseError("rrule", "", "bad freq", nil)
		assert.Equal(t, "RRULE error: bad freq", err.Error())
	})

	t.Run("wrap helper", func(t *testing.T) {
		baseErr := errors.New("EOF")
		wrapped := pkgerrors.WrapParse("json", "a.json", baseErr)
		parseErr, ok := wrapped.(*pkgerrors.ParseError)
		require.True(t, ok)
		assert.Equal(t, "a.json", parseErr.File)
		assert.Equal(t, baseErr, parseErr.Unwrap())
		assert.Nil(t, pkgerrors.WrapParse("json", "a.json", nil))
	})
}

func TestIOError(t *testing.T) {
	baseErr := errors.New("permission denied")
	err := pkgerrors.NewIOError("read", "/data/event/a.json", baseErr)
	assert.Equal(t, "I/O error at /data/event/a.json: permission denied", err.Error())
	assert.Equal(t, baseErr, err.Unwrap())
	assert.Nil(t, pkgerrors.WrapIO("read", "x", nil))
}

func TestTimestampErrors(t *testing.T) {
	t.Run("ambiguous", func(t *testing.T) {
		earlier := time.Date(2024, 10, 27, 0, 30, 0, 0, time.UTC)
		later := earlier.Add(time.Hour)
		err := &pkgerrors.AmbiguousTimestampError{Earlier: earlier, Later: later}
		assert.Equal(t, "ambiguous timestamp: could refer to 2024-10-27 00:30:00 or 2024-10-27 01:30:00 UTC", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrAmbiguousTimestamp))
		assert.Equal(t, pkgerrors.KindTimestampResolution, pkgerrors.KindOf(err))
	})

	t.Run("invalid", func(t *testing.T) {
		err := &pkgerrors.InvalidTimestampError{Local: "2024-03-31T02:30:00", Zone: "Europe/Berlin"}
		assert.Equal(t, "invalid timestamp", err.Error())
		assert.Equal(t, pkgerrors.KindTimestampResolution, pkgerrors.KindOf(err))
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pkgerrors.Kind
	}{
		{"nil", nil, pkgerrors.KindUnknown},
		{"plain", errors.New("boom"), pkgerrors.KindUnknown},
		{"multiple", &pkgerrors.MultipleCurrentEventsError{IDs: []string{"a", "b"}}, pkgerrors.KindDataIntegrity},
		{"event descriptor", pkgerrors.NewDescriptorError(pkgerrors.DescriptorEvent, "a", errors.New("x")), pkgerrors.KindDescriptorLookup},
		{"non json", &pkgerrors.NonJSONFileError{Filename: "README"}, pkgerrors.KindDescriptorLookup},
		{"auth", pkgerrors.NewAuthenticationError("api_key", "", nil), pkgerrors.KindAuthentication},
		{"transport", pkgerrors.NewTransportError("write", errors.New("closed")), pkgerrors.KindTransport},
		{"protocol", pkgerrors.NewProtocolError("bad tag", nil), pkgerrors.KindProtocol},
		{"end of stream", fmt.Errorf("reading credential: %w", pkgerrors.ErrEndOfStream), pkgerrors.KindProtocol},
		{"version", pkgerrors.NewVersionError("/repo", errors.New("no HEAD")), pkgerrors.KindVersionLookup},
		{"lagged", &pkgerrors.LaggedError{Capacity: 64}, pkgerrors.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkgerrors.KindOf(tt.err))
		})
	}
}

func TestAuthenticationError(t *testing.T) {
	err := pkgerrors.NewAuthenticationError("api_key", "", nil)
	assert.Equal(t, "unknown API key", err.Error())
	assert.True(t, pkgerrors.IsAPIKeyError(err))
}

func TestDebug(t *testing.T) {
	assert.Empty(t, pkgerrors.Debug(nil))

	inner := pkgerrors.NewNotFoundError("location", "nowhere")
	err := pkgerrors.WrapDescriptor(pkgerrors.DescriptorLocation, "nowhere", inner)
	debug := pkgerrors.Debug(err)

	assert.Contains(t, debug, "*errors.DescriptorError")
	assert.Contains(t, debug, "*errors.NotFoundError")
	assert.Contains(t, debug, "location with ID nowhere not found")
}
