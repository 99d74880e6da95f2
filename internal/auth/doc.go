// Package auth turns an opaque session cookie into a verified user.
//
// Session tokens are HS256 JWTs whose subject is the user id. Verification
// only checks signature and expiry; the user record, including role and owned
// entities, is always read fresh from the user repository.
package auth
