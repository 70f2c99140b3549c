// Package handler exposes the HTTP handlers of the delivery service:
// auth, public catalog browsing, customer download redemption and the
// admin issuance/repair endpoints.
package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the user_id the JWT middleware stored on the
// context and converts it to uint64. The middleware stores uint64,
// but JWT numeric claims decode as float64 when the value passes
// through JSON, so both shapes are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}
