// Package password implements secret hashing and verification.
//
// # Output format
//
// New hashes use argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes ($2a$, $2b$, $2y$) are verified as a legacy scheme. A [Hasher]
// reports NeedsUpgrade for legacy hashes and for argon2id hashes produced with
// weaker parameters, so callers can rehash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets; callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext secrets.
package password
