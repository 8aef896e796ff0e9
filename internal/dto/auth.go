package dto

// SignupRequest carries the fields of the signup form.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest carries the fields of the login form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
