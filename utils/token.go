package utils

import "strings"

// ExtractBearerToken returns everything after the first space of an
// "Authorization: Bearer <token>" header, untrimmed, or "" when the scheme
// is missing or different.
func ExtractBearerToken(authHeader string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return token
}
