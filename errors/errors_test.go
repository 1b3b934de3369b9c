package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "validation", err: Validation("amount %q is not a number", "abc"), want: ErrValidation},
		{name: "wrapped server", err: fmt.Errorf("failed to load transactions: %w", Server(500, "db down")), want: ErrServer},
		{name: "network", err: Network("request failed", io.EOF), want: ErrNetwork},
		{name: "not found", err: NotFound("transaction %s", "42"), want: ErrNotFound},
		{name: "plain error", err: io.ErrUnexpectedEOF, want: ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CodeOf(tt.err))
			require.True(t, Is(tt.err, tt.want))
		})
	}
}

func TestNetworkUnwrap(t *testing.T) {
	err := Network("request failed", io.EOF)
	require.ErrorIs(t, err, io.EOF)
}

func TestUserMessage(t *testing.T) {
	require.Equal(t, "Name cannot be empty!", UserMessage(Validation("Name cannot be empty!")))
	require.Equal(t, "Invalid credentials", UserMessage(Server(401, "Invalid credentials")))
	require.Equal(t, NetworkNotice, UserMessage(Network("dial tcp: refused", io.EOF)))
	require.Equal(t, "Transaction unavailable.", UserMessage(NotFound("transaction 7")))
	require.Equal(t, "", UserMessage(nil))
}

func TestServerDefaultMessage(t *testing.T) {
	err := Server(502, "")
	var appErr ErrorResponse
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "Bad Gateway", appErr.Message)
	require.Equal(t, 502, appErr.Status)
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, 400, HTTPStatus(ErrorResponse{Code: ErrInvalidInput}))
	require.Equal(t, 401, HTTPStatus(ErrorResponse{Code: ErrAuth}))
	require.Equal(t, 403, HTTPStatus(ErrorResponse{Code: ErrAccessDenied}))
	require.Equal(t, 404, HTTPStatus(ErrorResponse{Code: ErrNotFound}))
	require.Equal(t, 409, HTTPStatus(ErrorResponse{Code: ErrConflict}))
	require.Equal(t, 500, HTTPStatus(io.EOF))
}
