package handler

import (
    "errors"  // for constructing the missing-user error
    "strconv" // parsing string user ids stored in context

    "github.com/labstack/echo/v4" // Echo context access
)

// getUserID extracts the authenticated user's id from the Echo context.
// JWTAuth stores the JWT subject claim under "user_id"; depending on how
// the token was issued the claim may arrive as a number or a string, so
// all the plausible representations are handled here.
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
