package handlers

import (
	"strconv"
	"strings"
)

// parseShares accepts whole positive share counts only. "1.5", "0" and
// "-3" are all rejected.
func parseShares(raw string) (int64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	shares, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || shares <= 0 {
		return 0, false
	}
	return shares, true
}
