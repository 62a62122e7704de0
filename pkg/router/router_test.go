package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ErrorMapper(t *testing.T) {
	router := New()

	tcs := []struct {
		err    error
		mapper ErrorMapper
		exp    Error
	}{
		{
			err: errors.New("custom error"),
			mapper: func(err error) Error {
				return JsonError{
					Code: 400,
					Err:  err.Error(),
				}
			},
			exp: JsonError{
				Code: 400,
				Err:  "custom error",
			},
		},
		{
			err:    errors.New("random error"),
			mapper: nil,
			exp:    router.defaultError,
		},
		{
			err: JsonError{
				Code: 400,
				Err:  "API Error",
			},
			mapper: nil,
			exp: JsonError{
				Code: 400,
				Err:  "API Error",
			},
		},
	}

	for _, tc := range tcs {
		if tc.mapper != nil {
			router.RegisterErrorMapper(tc.err, tc.mapper)
		}
		got := router.mapError(tc.err)
		assert.Equal(t, tc.exp, got)
	}
}

func Test_HandlerErrorResponse(t *testing.T) {
	router := New()
	sentinel := errors.New("no such room")
	router.RegisterErrorMapper(sentinel, func(err error) Error {
		return NewJsonError(http.StatusNotFound, err.Error())
	})
	router.Get("/rooms/{roomID}", func(w http.ResponseWriter, r *http.Request) error {
		return sentinel
	})

	req := httptest.NewRequest(http.MethodGet, "/rooms/r1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":404,"error":"no such room"}`, rec.Body.String())
}
