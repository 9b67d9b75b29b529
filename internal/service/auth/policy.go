package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

const passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

var commonPasswords = []string{"123456", "password", "qwerty", "admin"}

// Rule identifies a single password requirement.
type Rule string

const (
	RuleMinLength      Rule = "min_length"
	RuleLowercase      Rule = "lowercase"
	RuleUppercase      Rule = "uppercase"
	RuleDigit          Rule = "digit"
	RuleSymbol         Rule = "symbol"
	RuleRepeatedChars  Rule = "repeated_characters"
	RuleCommonPassword Rule = "common_password"
	RuleOnlyLetters    Rule = "only_letters"
	RuleOnlyDigits     Rule = "only_digits"
)

const weakPatternMessage = "Password contains common weak patterns"

// Violation is one failed password requirement.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

// PasswordCheck is the outcome of ValidatePasswordStrength.
type PasswordCheck struct {
	Valid      bool
	Violations []Violation
}

// Messages returns the violation messages in rule order.
func (c PasswordCheck) Messages() []string {
	out := make([]string, 0, len(c.Violations))
	for _, v := range c.Violations {
		out = append(out, v.Message)
	}
	return out
}

// NormalizeEmail lowercases and trims an address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmailFormat reports whether input looks like a deliverable address.
func ValidateEmailFormat(input string) bool {
	return emailPattern.MatchString(input)
}

// ValidatePasswordStrength evaluates every rule and accumulates violations in
// a fixed order. At most one weak-pattern violation is reported, for the
// first pattern that matches.
func ValidatePasswordStrength(input string) PasswordCheck {
	var violations []Violation
	add := func(rule Rule, msg string) {
		violations = append(violations, Violation{Rule: rule, Message: msg})
	}

	if utf8.RuneCountInString(input) < minPasswordLength {
		add(RuleMinLength, "Password must be at least 8 characters long")
	}
	if !containsAny(input, isLower) {
		add(RuleLowercase, "Password must contain at least one lowercase letter")
	}
	if !containsAny(input, isUpper) {
		add(RuleUppercase, "Password must contain at least one uppercase letter")
	}
	if !containsAny(input, isDigit) {
		add(RuleDigit, "Password must contain at least one number")
	}
	if !strings.ContainsAny(input, passwordSymbols) {
		add(RuleSymbol, "Password must contain at least one special character")
	}
	if rule, weak := weakPattern(input); weak {
		add(rule, weakPatternMessage)
	}

	return PasswordCheck{Valid: len(violations) == 0, Violations: violations}
}

func weakPattern(input string) (Rule, bool) {
	switch {
	case hasRepeatedRun(input, 3):
		return RuleRepeatedChars, true
	case containsCommonPassword(input):
		return RuleCommonPassword, true
	case input != "" && containsOnly(input, isLetter):
		return RuleOnlyLetters, true
	case input != "" && containsOnly(input, isDigit):
		return RuleOnlyDigits, true
	}
	return "", false
}

func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func containsCommonPassword(s string) bool {
	lower := strings.ToLower(s)
	for _, weak := range commonPasswords {
		if strings.Contains(lower, weak) {
			return true
		}
	}
	return false
}

func containsAny(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if pred(r) {
			return true
		}
	}
	return false
}

func containsOnly(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return true
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isLetter(r rune) bool { return isLower(r) || isUpper(r) }
