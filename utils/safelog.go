// utils/safelog.go
// ============================================================================
// SAFE LOGGING - masks personal and financial data in production
// ============================================================================

package utils

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var production atomic.Bool

// SetProduction switches masking on or off. Called once from config.
func SetProduction(on bool) { production.Store(on) }

// IsProduction reports whether sensitive values are masked.
func IsProduction() bool { return production.Load() }

// ============================================================================
// MASKING PATTERNS
// ============================================================================

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	uuidRegex   = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+\S+`)
	tokenRegex  = regexp.MustCompile(`(?i)(access_token|token)=[^&\s]+`)
)

// ============================================================================
// MASKING FUNCTIONS
// ============================================================================

// MaskString masks emails, uuids and tokens inside free text.
// Tokens are always masked, the rest only in production.
func MaskString(input string) string {
	result := bearerRegex.ReplaceAllString(input, "Bearer ***")
	result = tokenRegex.ReplaceAllString(result, "$1=***")

	if !IsProduction() {
		return result
	}

	result = emailRegex.ReplaceAllString(result, "***@***.***")
	result = uuidRegex.ReplaceAllStringFunc(result, func(id string) string {
		return id[:8] + "..."
	})
	return result
}

// MaskAmount hides a money amount in production.
func MaskAmount(amount float64) string {
	if IsProduction() {
		return "***"
	}
	return fmt.Sprintf("%.2f", amount)
}

// MaskID keeps the first 8 characters of an id in production.
func MaskID(id string) string {
	if !IsProduction() {
		return id
	}
	if len(id) <= 8 {
		return "***"
	}
	return id[:8] + "..."
}

// MaskEmail hides an email address in production.
func MaskEmail(email string) string {
	if !IsProduction() {
		return email
	}
	return "***@***.***"
}
