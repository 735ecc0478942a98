// Package auth issues and verifies bearer tokens and derives the identity a
// request is rate limited under.
//
// Tokens are HS256 JWTs carrying a subject, issue time, expiry and a purpose
// tag. They are never stored server side; verification checks the signature,
// the algorithm and the expiry on every use.
//
// The Resolver maps a request to an identity key: "user:<subject>" when the
// Authorization header carries a valid token, otherwise "ip:<address>".
// Resolution never fails; token problems fall back to the address.
package auth
