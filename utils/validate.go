package utils

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/raushankrgupta/gait-speed-service/models"
)

var (
	phonePattern = regexp.MustCompile(`^09\d{8}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

const (
	MinPasswordLength = 6
	// bcrypt refuses longer input
	MaxPasswordBytes = 72
)

// PasswordProblem returns a user-facing message when password is outside the
// accepted length, or "" when it is fine.
func PasswordProblem(password string) string {
	if len(password) < MinPasswordLength {
		return fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes)
	}
	return ""
}

// IsValidPhone checks the local mobile format 09xxxxxxxx.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func IsValidGender(gender string) bool {
	switch gender {
	case models.GenderMale, models.GenderFemale, models.GenderOther:
		return true
	}
	return false
}

// RuneLen counts characters rather than bytes so CJK names are measured correctly.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
