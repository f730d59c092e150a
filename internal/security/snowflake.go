// Package security holds input validation for externally supplied ids.
package security

import (
	"errors"
	"strconv"
)

// ParseSnowflake validates a Discord snowflake id: numeric, non-zero, and
// within uint64 range. Returns the parsed value.
func ParseSnowflake(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("empty snowflake")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.New("snowflake must be numeric")
		}
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("invalid snowflake")
	}
	if id == 0 {
		return 0, errors.New("snowflake must be > 0")
	}
	return id, nil
}

// ParseTweetID validates an external tweet id, which shares the snowflake
// format.
func ParseTweetID(s string) (uint64, error) {
	return ParseSnowflake(s)
}
