// Package jwt signs and verifies the session token that carries folioAuth
// session claims between requests.
//
// The payload holds exactly the claim set trusted by route authorization
// (account id, role, status, optional access and refresh tokens) plus
// registered expiry metadata. It never carries password or two-factor data.
package jwt
