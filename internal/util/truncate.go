package util

// Truncate caps s at max bytes. Used for provider error payloads persisted in
// the sends ledger (~1000 char cap).
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
