package models

import "github.com/golang-jwt/jwt/v5"

// MerchantClaims is the JWT payload for authenticated API calls.
type MerchantClaims struct {
	MerchantID uint   `json:"merchant_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}
