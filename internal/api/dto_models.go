package api

import (
	"github.com/aglago/g-clients-sub000/internal/core"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// ErrorResponse is the envelope of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	// ExistingUser tells a guest checkout client to ask the user to log in.
	ExistingUser bool `json:"existingUser,omitempty"`
}

// SuccessResponse is the envelope of a successful request.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func success(message string, data interface{}) SuccessResponse {
	return SuccessResponse{Success: true, Message: message, Data: data}
}

// CheckoutResponse flattens the checkout result into the envelope.
type CheckoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*core.CheckoutResult
}

// AuthResponse is returned by endpoints that log the user in.
type AuthResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Token   string       `json:"token,omitempty"`
	User    *models.User `json:"user,omitempty"`
}
