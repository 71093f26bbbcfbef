package dto

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StopRequest is the optional body of a manual stop.
type StopRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// TickersRequest replaces an account's ticker selection. An empty list trades every qualified symbol.
type TickersRequest struct {
	Symbols []string `json:"symbols" validate:"max=20,dive,required,max=10"`
}

// TickersResponse is the account's ticker selection.
type TickersResponse struct {
	AccountID uint     `json:"account_id"`
	Symbols   []string `json:"symbols"`
}
