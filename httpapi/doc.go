// Package httpapi exposes authcore.Engine over HTTP with chi.
//
// Access tokens travel only in the Authorization header. Refresh tokens are
// returned in the body and in the HttpOnly refreshToken cookie; refresh and
// logout accept either. Errors are RFC 7807 problem documents, and every
// credential-related rejection on a route shares one message so responses do
// not reveal which check failed.
package httpapi
