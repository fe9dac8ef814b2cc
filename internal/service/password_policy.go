package service

import (
	"unicode"
)

const defaultMinPasswordLength = 8

type passwordPolicyError struct {
	key  string
	args []interface{}
}

func (e passwordPolicyError) Error() string {
	return e.key
}

func (e passwordPolicyError) Is(target error) bool {
	return target == ErrWeakPassword
}

func (e passwordPolicyError) Key() string {
	return e.key
}

func (e passwordPolicyError) Args() []interface{} {
	return e.args
}

// validatePassword 最小长度 + 至少包含字母与数字
func validatePassword(minLength int, password string) error {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	if len([]rune(password)) < minLength {
		return passwordPolicyError{key: "error.password_min_length", args: []interface{}{minLength}}
	}
	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasLetter {
		return passwordPolicyError{key: "error.password_require_letter"}
	}
	if !hasNumber {
		return passwordPolicyError{key: "error.password_require_number"}
	}
	return nil
}
