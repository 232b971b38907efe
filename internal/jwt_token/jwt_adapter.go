package jwttoken

import (
	authmw "fides/pkg/platform/middleware/auth"
)

// JWTServiceAdapter bridges the JWT service to the auth middleware's
// validator contract.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		ActorID: claims.ActorID,
		NodeID:  claims.NodeID,
		Scope:   claims.Scope,
	}, nil
}
