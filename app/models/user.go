package models

import "gorm.io/gorm"

// User is the account record behind the users module.
type User struct {
	gorm.Model
	Name         string `gorm:"size:255;not null" json:"name"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string `gorm:"column:password;size:255;not null" json:"-"` // bcrypt, never serialised
	Role         string `gorm:"size:50;default:user" json:"role"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool { return u.Role == "admin" }
