package httpx

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const roleAdmin = "admin"

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminOnly accepts HS256 bearer tokens signed with secret whose role
// claim is "admin".
func AdminOnly(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			var claims adminClaims
			token, err := parser.ParseWithClaims(strings.TrimSpace(parts[1]), &claims, keyFunc)
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}
			if claims.Role != roleAdmin {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "FORBIDDEN", Message: "admin role required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "UNAUTHORIZED", Message: msg})
}
