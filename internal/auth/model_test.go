package auth

import (
	"strings"
	"testing"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/stretchr/testify/require"
)

func TestValidateUserFields(t *testing.T) {
	tests := []struct {
		name        string
		input       NewUser
		expectedMsg string
	}{
		{
			name:        "Fail - Empty Full Name",
			input:       NewUser{FullName: " ", Email: "john@gmail.com", PasswordPlain: "123"},
			expectedMsg: "Full name cannot be empty!",
		},
		{
			name:        "Fail - Empty Email",
			input:       NewUser{FullName: "John Doe", PasswordPlain: "123"},
			expectedMsg: "Email cannot be empty!",
		},
		{
			name:        "Fail - Invalid Email",
			input:       NewUser{FullName: "John Doe", Email: "john@", PasswordPlain: "123"},
			expectedMsg: "Invalid email format, example valid email: john.doe@gmail.com",
		},
		{
			name:        "Fail - Long Password",
			input:       NewUser{FullName: "John Doe", Email: "john@gmail.com", PasswordPlain: strings.Repeat("x", 73)},
			expectedMsg: "Password so long, maximum length is 72",
		},
		{
			name:  "Success",
			input: NewUser{FullName: "John Doe", Email: "john@gmail.com", PasswordPlain: "messi10", Country: "AZ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.ValidateUserFields()
			if tt.expectedMsg == "" {
				require.NoError(t, err)
				return
			}
			var appErr appErrors.ErrorResponse
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, appErrors.ErrValidation, appErr.Code)
			require.Equal(t, tt.expectedMsg, appErr.Message)
		})
	}
}

func TestCredentialsValidate(t *testing.T) {
	require.Error(t, UserCredentialsPure{PasswordPlain: "x"}.Validate())
	require.Error(t, UserCredentialsPure{Email: "a@b.co"}.Validate())
	require.NoError(t, UserCredentialsPure{Email: "a@b.co", PasswordPlain: "x"}.Validate())
}
