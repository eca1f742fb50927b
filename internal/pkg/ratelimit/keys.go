package ratelimit

import "strings"

const unknownIP = "unknown"

func UserKey(userID string) string {
	return "user:" + userID
}

// IPKey keys on the first address of ip. ip must come from a trusted source
// such as fiber.Ctx.IP() with trusted proxies configured.
func IPKey(ip string) string {
	first, _, _ := strings.Cut(ip, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		first = unknownIP
	}
	return "ip:" + first
}

// KeyFor derives the limiter key for scope.
func KeyFor(scope Scope, userID, ip string) string {
	if scope == ScopeUser && strings.TrimSpace(userID) != "" {
		return UserKey(strings.TrimSpace(userID))
	}
	return IPKey(ip)
}
