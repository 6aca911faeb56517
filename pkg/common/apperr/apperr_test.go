package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Validation("weight_kg must be positive"), http.StatusBadRequest},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{NotFound("child"), http.StatusNotFound},
		{Conflict("child has measurements"), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusCode(tc.err), "%v", tc.err)
	}
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := Internal(errors.New("pq: connection refused"))
	assert.True(t, errors.Is(err, ErrInternal))
	assert.Equal(t, "internal error", PublicMessage(err))
	assert.Equal(t, "not found: child", PublicMessage(NotFound("child")))
	assert.False(t, IsExpected(Conflict("x")))
	assert.True(t, IsExpected(ErrForbidden))
}
