package api

import "github.com/Ali-hajj/youware-source-code/internal/store"

// CheckRequest is the body accepted by the check endpoint.
type CheckRequest struct {
	Serial *string `json:"serial"`
}

// CheckResponse mirrors the payload the license checker decodes.
type CheckResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Status string `json:"status,omitempty"`
	Expiry string `json:"expiry,omitempty"`
	Plan   string `json:"plan,omitempty"`
	User   string `json:"user,omitempty"`
}

func rejected(reason string) CheckResponse {
	return CheckResponse{Valid: false, Reason: reason}
}

// AcceptedFromModel builds the success payload for an active record.
func AcceptedFromModel(l store.License) CheckResponse {
	return CheckResponse{
		Valid:  true,
		User:   l.UserName,
		Expiry: l.ExpiryDate,
		Plan:   l.PlanType,
		Status: l.Status,
	}
}
