// Package models defines the data structures used throughout the application.
// It includes the persisted item shape and the request and response payloads
// of the users and items endpoints.
package models

// Item is a single entry of the persisted collection.
// Field order is the key order of the pretty-printed data file.
type Item struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// ItemRequest is the body of item create and update requests.
type ItemRequest struct {
	Name string `json:"name"`
}

// AuthRequest represents the signup and login payload.
type AuthRequest struct {
	Name string `json:"name"`
	Pass string `json:"pass"`
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	Msg   string `json:"msg"`
	Token string `json:"token"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Msg string `json:"msg"`
}

// ErrorResponse represents every error body: a short label plus a hint.
type ErrorResponse struct {
	Error string `json:"error"`
	Msg   string `json:"msg"`
}
