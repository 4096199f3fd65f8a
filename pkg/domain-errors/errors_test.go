package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndCodes(t *testing.T) {
	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		base := Wrap(errors.New("dial tcp: refused"), CodeBadGateway, "example source unreachable")
		err := fmt.Errorf("regenerate: %w", base)

		assert.True(t, HasCode(err, CodeBadGateway))
		assert.False(t, HasCode(err, CodeNotFound))
		assert.Equal(t, CodeBadGateway, CodeOf(err))
		assert.Equal(t, "example source unreachable", MessageOf(err))
	})

	t.Run("inner codes are visible through outer codes", func(t *testing.T) {
		inner := New(CodeInvalidInput, "unknown attribute")
		outer := Wrap(inner, CodeBadRequest, "update rejected")

		assert.True(t, Is(outer, CodeBadRequest))
		assert.True(t, Is(outer, CodeInvalidInput))
		assert.Equal(t, CodeBadRequest, CodeOf(outer))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Equal(t, "internal error", MessageOf(err))
	})
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidInput))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(CodeBadGateway))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Code("whatever")))
}
