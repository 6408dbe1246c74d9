package domain

import "time"

// Claims are the verified contents of an access token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type AuthService interface {
	DecodeToken(token string) (*Claims, error)
}
