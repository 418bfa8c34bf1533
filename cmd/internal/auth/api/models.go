package api

import "time"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type identityResponse struct {
	Username  string `json:"username"`
	Authority string `json:"authority"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordChangeRequest struct {
	Password string `json:"password"`
}

type authorityChangeRequest struct {
	Authority string `json:"authority"`
}
