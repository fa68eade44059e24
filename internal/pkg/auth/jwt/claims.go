package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a Campus Connect session token.
type Payload struct {
	// StandardClaims carries expiry, issue time and issuer.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the viewer's directory user id.
	ID string `json:"id"`

	// Name is the viewer's display name at login time. Informational only.
	Name string `json:"name,omitempty"`

	// SessionID binds the token to one login. A token from a replaced login is rejected by the session manager.
	SessionID string `json:"sid"`
}
