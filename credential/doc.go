// Package credential verifies password logins and resolves externally
// asserted identities to principals.
//
// Unknown principals and wrong secrets both yield [ErrInvalidCredentials]
// after an equivalent hash computation. [Verifier.ResolveOrProvision] has an
// explicit insert side effect: the first login of an unseen identity creates
// an active principal with the configured default grant.
package credential
