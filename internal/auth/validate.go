// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package auth

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// Password policy configuration.
const (
	MinPasswordLength = 8
)

// User-facing validation messages. These are rendered verbatim in API
// responses, so the wording is part of the contract.
const (
	MsgNoRegistrationData = "No registration data received. Please provide the required information."
	MsgNoLoginData        = "No login data received. Please provide the required information."
	MsgMissingKeys        = "Some required fields are missing. Please provide all required information."
	MsgMissingFields      = "Please fill out all required fields."
	MsgUsernameTooShort   = "The username must be at least 3 characters long."
	MsgUsernameCharset    = "The username can only include letters, numbers, underscores, and periods."
	MsgUsernameTaken      = "The provided username is already in use. Please try a different one."
	MsgEmailInvalid       = "The provided email address is not valid. Please enter a valid email address."
	MsgEmailTaken         = "The provided email is already in use. If you forgot your password, please use the password reset function."
	MsgPasswordMismatch   = "The provided passwords do not match. Please ensure both passwords are identical."
	MsgPasswordTooShort   = "The password must be at least 8 characters long."
	MsgPasswordWeak       = "The password must contain at least one uppercase letter, one lowercase letter, and one number."
	MsgUsernameNotFound   = "The provided username does not exist. Please check your spelling or consider registering."
	MsgEmailNotFound      = "The provided email does not exist. Please check your spelling or consider registering."
	MsgPasswordIncorrect  = "The provided password is incorrect. Please try again."
	MsgAlreadyLoggedInReg = "You are already logged in. Please logout to register a new account."
	MsgAlreadyLoggedIn    = "You are already logged in. Please logout to login to a different account."
	MsgLoginRequired      = "Please log in to access this resource."
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
	emailRegex    = regexp.MustCompile(`^[0-9a-zA-Z]([-_.]*[0-9a-zA-Z]+)*@[0-9a-zA-Z]([-_.]*[0-9a-zA-Z]+)*\.[a-zA-Z]{2,9}$`)
)

// ValidateUsernameFormat checks a username against the length and
// charset rules, in that order.
func ValidateUsernameFormat(username string) error {
	if len(username) < MinUsernameLength {
		return oops.Code(CodeValidation).Errorf("%s", MsgUsernameTooShort)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code(CodeValidation).Errorf("%s", MsgUsernameCharset)
	}
	return nil
}

// ValidateEmailFormat checks that an email address is well-formed.
func ValidateEmailFormat(email string) error {
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeValidation).Errorf("%s", MsgEmailInvalid)
	}
	return nil
}

// ValidatePasswordPair checks password confirmation, minimum length,
// and character-class requirements, in that order.
func ValidatePasswordPair(password, confirm string) error {
	if password != confirm {
		return oops.Code(CodeValidation).Errorf("%s", MsgPasswordMismatch)
	}
	if len(password) < MinPasswordLength {
		return oops.Code(CodeValidation).Errorf("%s", MsgPasswordTooShort)
	}
	if !passwordMeetsComplexity(password) {
		return oops.Code(CodeValidation).Errorf("%s", MsgPasswordWeak)
	}
	return nil
}

// passwordMeetsComplexity reports whether the password contains at
// least one uppercase letter, one lowercase letter, and one digit.
func passwordMeetsComplexity(password string) bool {
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

// IsEmailAddress reports whether the login identifier should be
// treated as an email address rather than a username.
func IsEmailAddress(identifier string) bool {
	return strings.Contains(identifier, "@")
}
