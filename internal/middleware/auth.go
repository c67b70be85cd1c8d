package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/wander/internal/domain"
)

// BuyerClaims are the claims carried by buyer access tokens. Subject is the
// account's user ID.
type BuyerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// BearerAuth validates HS256 access tokens issued by the account service.
type BearerAuth struct {
	secret []byte
	issuer string
}

// NewBearerAuth returns a validator for tokens signed with secret. When
// issuer is non-empty the iss claim must match it.
func NewBearerAuth(secret, issuer string) *BearerAuth {
	return &BearerAuth{secret: []byte(secret), issuer: issuer}
}

// Parse validates a raw token and returns the buyer it identifies.
func (a *BearerAuth) Parse(raw string) (*domain.Buyer, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims BuyerClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" && claims.Email == "" {
		return nil, errors.New("token identifies no buyer")
	}
	return &domain.Buyer{UserID: claims.Subject, Email: strings.ToLower(claims.Email)}, nil
}

// Sign issues a token for buyer. Used by tests and local tooling; production
// tokens come from the account service.
func (a *BearerAuth) Sign(buyer domain.Buyer, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := BuyerClaims{
		Email: buyer.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   buyer.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// WithBuyer attaches the buyer to the request context when a valid bearer
// token is present. Missing or invalid tokens leave the request anonymous.
func (a *BearerAuth) WithBuyer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		buyer, err := a.Parse(raw)
		if err != nil {
			GetLogger(r.Context()).Debug("ignoring invalid bearer token", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(domain.NewContextWithBuyer(r.Context(), buyer)))
	})
}

// RequireBuyer rejects the request with 401 unless a valid bearer token is
// present.
func (a *BearerAuth) RequireBuyer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if domain.IsAuthenticated(r.Context()) {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := bearerToken(r)
		if !ok {
			respondUnauthorized(w, r, "Authentication required")
			return
		}

		buyer, err := a.Parse(raw)
		if err != nil {
			GetLogger(r.Context()).Info("bearer token rejected", "error", err)
			respondUnauthorized(w, r, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(domain.NewContextWithBuyer(r.Context(), buyer)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
