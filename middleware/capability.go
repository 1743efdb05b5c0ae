package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore/permission"
)

// RequireCapability returns middleware that admits only callers whose token
// snapshot holds every bit of capability. It must run after [Guard].
func RequireCapability(capability permission.Mask) func(http.Handler) http.Handler {
	return RequireCapabilityWith(capability, nil)
}

// RequireCapabilityWith is [RequireCapability] with a custom rejection
// writer.
func RequireCapabilityWith(capability permission.Mask, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = plainError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := ValidationFromContext(r.Context())
			if !ok {
				onError(w, r, http.StatusUnauthorized)
				return
			}
			if !permission.Has(res.Permissions, capability) {
				onError(w, r, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
