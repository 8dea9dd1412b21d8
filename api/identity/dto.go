// Package identity provides the authentication endpoints and middleware.
package identity

// AuthRequest represents a registration or login request.
type AuthRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents a successful login response.
type AuthResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Token    string `json:"token"`
}
