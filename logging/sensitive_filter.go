package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns detect secrets embedded in free-form strings such as
// error messages and echoed request headers. Compiled once at init.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(rpa_[a-zA-Z0-9]{16,})`),                 // RunPod API keys
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._~+/=-]{8,})`),      // Bearer tokens
	regexp.MustCompile(`(?i)(authorization\s*[:=]\s*[^\s,;"']{8,})`), // echoed headers
	regexp.MustCompile(`(?i)(ghp_[a-zA-Z0-9]{36})`),                  // GitHub tokens (image hosts)
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{8,})`),        // password= or password:
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),          // secret= or secret:
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),           // token= or token:
	regexp.MustCompile(`(?i)(api_?key\s*[:=]\s*[^\s,;]{8,})`),        // api_key= or apikey=

	// Signed query strings on presigned image URLs
	regexp.MustCompile(`(?i)([?&](?:sig|signature|x-amz-signature)=[^&\s"']{8,})`),
}

// sensitiveFieldNames are substrings of field keys whose values are never logged.
var sensitiveFieldNames = []string{
	"RUNPOD_API_KEY",
	"API_KEY",
	"APIKEY",
	"AUTHORIZATION",
	"PASSWORD",
	"SECRET",
	"TOKEN",
}

// RedactSensitiveData scans a string value and redacts any detected sensitive data.
//
// Example:
//
//	RedactSensitiveData("status 401 for Bearer rpa_ABCDEF1234567890XYZ")
//	// "status 401 for [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// RedactField returns the placeholder when fieldName names a secret and the
// pattern-scrubbed value otherwise.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return RedactSensitiveData(fieldValue)
}

// IsSensitiveField returns true if the field name indicates sensitive data.
// Only the name is checked, not the value.
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData returns true if the value matches any secret pattern.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
