package handler

import "github.com/firefly/security-center/internal/core/ports"

// --- Request / Response types ---

type loginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=256"`
	Password string `json:"password" validate:"required"`
	Scope    string `json:"scope,omitempty"`
	Channel  string `json:"channel,omitempty" validate:"max=64"`
}

type logoutRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type authResponse struct {
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken,omitempty"`
	IDToken         string `json:"idToken,omitempty"`
	TokenType       string `json:"tokenType"`
	ExpiresIn       int64  `json:"expiresIn"`
	SessionID       string `json:"sessionId"`
	PartyID         string `json:"partyId"`
	DirectoryBacked bool   `json:"directoryBacked"`
}

func toAuthResponse(r *ports.LoginResult) authResponse {
	return authResponse{
		AccessToken:     r.Tokens.AccessToken,
		RefreshToken:    r.Tokens.RefreshToken,
		IDToken:         r.Tokens.IDToken,
		TokenType:       r.Tokens.TokenType,
		ExpiresIn:       r.Tokens.ExpiresIn,
		SessionID:       r.SessionID,
		PartyID:         r.PartyID.String(),
		DirectoryBacked: r.DirectoryBacked,
	}
}

type validityResponse struct {
	SessionID string `json:"sessionId"`
	Valid     bool   `json:"valid"`
}

type decisionResponse struct {
	PartyID   string `json:"partyId,omitempty"`
	ProductID string `json:"productId"`
	Action    string `json:"action,omitempty"`
	Resource  string `json:"resource,omitempty"`
	Granted   bool   `json:"granted"`
}

type partyChangeRequest struct {
	PartyID string `json:"partyId" validate:"required,uuid"`
	Kind    string `json:"kind"    validate:"required,oneof=refresh invalidate"`
	Reason  string `json:"reason,omitempty"`
}

type acceptedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}
