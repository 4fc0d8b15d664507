package model

import "time"

// User is an administrator account for the editing surface.
// The public console itself is unauthenticated.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:191"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:191"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
