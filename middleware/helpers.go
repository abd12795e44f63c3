package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const (
	jwtClaimUserID = "user_id"

	AccessTokenHeader = "X-Access-Token"
	accessTokenQuery  = "token"
)

var ErrNoUserInContext = errors.New("user claims not found in context")

func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return 0, ErrNoUserInContext
	}

	userIDClaim, ok := claims[jwtClaimUserID]
	if !ok {
		return 0, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	var userID int
	switch v := userIDClaim.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("'%s' claim is not an integer: %f", jwtClaimUserID, v)
		}
		userID = int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid '%s' claim: %w", jwtClaimUserID, err)
		}
		userID = parsed
	default:
		return 0, fmt.Errorf("invalid type for '%s' claim: expected float64 or string, got %T", jwtClaimUserID, userIDClaim)
	}

	if userID <= 0 {
		return 0, fmt.Errorf("invalid user ID value in '%s' claim: %d", jwtClaimUserID, userID)
	}
	return userID, nil
}

// AccessTokenFromRequest достает токен доступа участника: заголовок важнее query-параметра.
func AccessTokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(AccessTokenHeader)); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get(accessTokenQuery))
}
