package user

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the public view of a user.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username}
}

type CredentialsRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

type VerifyPasswordRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Password string `json:"password" binding:"required,max=72"`
}

type UpdatePasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,max=72"`
}
