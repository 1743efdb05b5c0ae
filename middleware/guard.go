package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// Validator is the part of [authcore.Engine] the guards need.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*authcore.ValidationResult, error)
}

type validationContextKey struct{}
type bearerContextKey struct{}

// ValidationFromContext returns the result stored by [Guard].
func ValidationFromContext(ctx context.Context) (*authcore.ValidationResult, bool) {
	res, ok := ctx.Value(validationContextKey{}).(*authcore.ValidationResult)
	return res, ok
}

// BearerFromContext returns the raw access token accepted by [Guard].
func BearerFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(bearerContextKey{}).(string)
	return tok, ok
}

// ErrorWriter writes a rejection. status is 401, 403 or 503.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int)

func plainError(w http.ResponseWriter, _ *http.Request, status int) {
	switch status {
	case http.StatusForbidden:
		http.Error(w, "forbidden", status)
	case http.StatusServiceUnavailable:
		http.Error(w, "service unavailable", status)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

// Guard rejects requests without a valid bearer access token and stores the
// validation result in the request context.
func Guard(v Validator) func(http.Handler) http.Handler {
	return GuardWith(v, nil)
}

// GuardWith is [Guard] with a custom rejection writer. A nil onError writes
// plain-text errors.
func GuardWith(v Validator, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = plainError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				onError(w, r, http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				onError(w, r, http.StatusUnauthorized)
				return
			}

			res, err := v.Validate(r.Context(), token)
			if err != nil {
				onError(w, r, http.StatusServiceUnavailable)
				return
			}
			if !res.IsValid {
				onError(w, r, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), validationContextKey{}, res)
			ctx = context.WithValue(ctx, bearerContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
