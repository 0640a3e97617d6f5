package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestConstructorsKeepCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Conflict("product already exists", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, StatusConflict, StatusOf(err))
	require.Equal(t, "[CONFLICT] product already exists: duplicate key", err.Error())
}

func TestJSONHidesCause(t *testing.T) {
	err := NotFound("license not found", errors.New("record not found"))

	var base BaseError
	require.True(t, errors.As(err, &base))

	body := base.JSON().(map[string]interface{})
	require.Equal(t, false, body["success"])
	inner := body["error"].(map[string]interface{})
	require.Equal(t, StatusNotFound, inner["code"])
	require.Equal(t, "license not found", inner["message"])
}

func TestHTTPStatus(t *testing.T) {
	cases := map[CoreStatus]int{
		StatusBadRequest:         http.StatusBadRequest,
		StatusValidationFailed:   http.StatusUnprocessableEntity,
		StatusForbidden:          http.StatusForbidden,
		StatusNotFound:           http.StatusNotFound,
		StatusConflict:           http.StatusConflict,
		StatusServiceUnavailable: http.StatusServiceUnavailable,
		StatusInternal:           http.StatusInternalServerError,
		CoreStatus("SOMETHING"):  http.StatusInternalServerError,
	}
	for s, want := range cases {
		require.Equal(t, want, s.HTTPStatus(), s)
	}
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("activate: %w", Forbidden("license key is disabled", nil))
	require.Equal(t, StatusForbidden, StatusOf(err))
	require.Equal(t, StatusInternal, StatusOf(errors.New("boom")))
}

func TestToGRPCError(t *testing.T) {
	require.NoError(t, ToGRPCError(nil))

	st, ok := status.FromError(ToGRPCError(NotFound("invalid activation token", nil)))
	require.True(t, ok)
	require.Equal(t, codes.NotFound, st.Code())

	st, _ = status.FromError(ToGRPCError(context.DeadlineExceeded))
	require.Equal(t, codes.DeadlineExceeded, st.Code())

	st, _ = status.FromError(ToGRPCError(errors.New("boom")))
	require.Equal(t, codes.Internal, st.Code())
}

type kindError struct{ msg string }

func (e kindError) Error() string         { return "kind: " + e.msg + ": db closed" }
func (e kindError) Status() CoreStatus    { return StatusServiceUnavailable }
func (e kindError) PublicMessage() string { return e.msg }

func TestToGRPCErrorHidesCause(t *testing.T) {
	st, _ := status.FromError(ToGRPCError(Internal("failed to activate license", errors.New("db closed"))))
	require.Equal(t, codes.Internal, st.Code())
	require.Equal(t, "failed to activate license", st.Message())

	st, _ = status.FromError(ToGRPCError(fmt.Errorf("activate: %w", kindError{msg: "Please retry."})))
	require.Equal(t, codes.Unavailable, st.Code())
	require.Equal(t, "Please retry.", st.Message())
}
