package auth

import (
	"regexp"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/financez/errors"
)

const (
	MAX_LENGTH_FULLNAME = 255
	MAX_LENGTH_EMAIL    = 255
	MAX_LENGTH_COUNTRY  = 100
	MAX_PASSWORD_LENGTH = 72
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9](\.?[a-zA-Z0-9_%+-])*@[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,}$`)

type User struct {
	ID             string
	FullName       string
	Email          string
	Country        string
	PasswordHashed string
	CreatedAt      time.Time
}

type NewUser struct {
	FullName      string
	Email         string
	PasswordPlain string
	Country       string
}

func (newUser NewUser) ValidateUserFields() error {
	if err := ValidateFullName(newUser.FullName); err != nil {
		return err
	}
	if err := ValidateEmail(newUser.Email); err != nil {
		return err
	}
	if err := ValidatePassword(newUser.PasswordPlain); err != nil {
		return err
	}
	if len(newUser.Country) > MAX_LENGTH_COUNTRY {
		return appErrors.Validation("Country so long, maximum length is %d", MAX_LENGTH_COUNTRY)
	}
	return nil
}

type UserCredentialsPure struct {
	Email         string
	PasswordPlain string
}

func (c UserCredentialsPure) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return appErrors.Validation("Email cannot be empty!")
	}
	if c.PasswordPlain == "" {
		return appErrors.Validation("Password cannot be empty!")
	}
	return nil
}

func ValidateFullName(fullName string) error {
	if strings.TrimSpace(fullName) == "" {
		return appErrors.Validation("Full name cannot be empty!")
	}
	if len(fullName) > MAX_LENGTH_FULLNAME {
		return appErrors.Validation("Full name so long, maximum length is %d", MAX_LENGTH_FULLNAME)
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return appErrors.Validation("Email cannot be empty!")
	}
	if len(email) > MAX_LENGTH_EMAIL {
		return appErrors.Validation("Email so long, maximum length is %d", MAX_LENGTH_EMAIL)
	}
	if !emailRegex.MatchString(email) {
		return appErrors.Validation("Invalid email format, example valid email: john.doe@gmail.com")
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return appErrors.Validation("Password cannot be empty!")
	}
	if len(password) > MAX_PASSWORD_LENGTH {
		return appErrors.Validation("Password so long, maximum length is %d", MAX_PASSWORD_LENGTH)
	}
	return nil
}
