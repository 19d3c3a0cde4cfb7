package domainerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesChain(t *testing.T) {
	base := errors.New("row missing")
	wrapped := Wrap(base, CodeNotFound, "code not found")

	require.Error(t, wrapped)
	assert.True(t, errors.Is(wrapped, base))
	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeExpired))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "should vanish"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeExpired, CodeOf(New(CodeExpired, "code expired")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	// Outermost code wins when errors are re-wrapped.
	inner := New(CodeNotFound, "missing")
	outer := Wrap(inner, CodeInternal, "lookup failed")
	assert.Equal(t, CodeInternal, CodeOf(outer))
	assert.True(t, HasCode(outer, CodeNotFound))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput: http.StatusBadRequest,
		CodeNotFound:     http.StatusNotFound,
		CodeExhausted:    http.StatusConflict,
		CodeRateLimited:  http.StatusTooManyRequests,
		CodeUnavailable:  http.StatusServiceUnavailable,
		Code("unknown"):  http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}

func TestMessageOfHidesUncoded(t *testing.T) {
	assert.Equal(t, "", MessageOf(errors.New("pq: connection refused")))
	assert.Equal(t, "invalid code format", MessageOf(New(CodeInvalidInput, "invalid code format")))
}
