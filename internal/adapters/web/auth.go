package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type sellerClaimsKey struct{}

// SellerClaims holds the authenticated seller's identity extracted from the JWT.
type SellerClaims struct {
	UserID  string
	StoreID string
	Role    string
}

// sellerFromContext returns the seller claims stored in ctx, or nil.
func sellerFromContext(ctx context.Context) *SellerClaims {
	v, _ := ctx.Value(sellerClaimsKey{}).(*SellerClaims)
	return v
}

// jwtClaims is the JWT payload issued by the storefront backend.
type jwtClaims struct {
	StoreID string `json:"store_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// RequireSeller validates the bearer token (or the auth_token cookie) and
// injects SellerClaims into the request context. Returns 401 if the token is
// absent or invalid, 403 if it carries no store.
func (h *Handler) RequireSeller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		if strings.TrimSpace(claims.StoreID) == "" {
			writeError(w, r, "token is not bound to a store", "FORBIDDEN", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), sellerClaimsKey{}, &SellerClaims{
			UserID:  claims.Subject,
			StoreID: claims.StoreID,
			Role:    claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}
