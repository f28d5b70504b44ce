package models

import (
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email         string `json:"email" gorm:"uniqueIndex;not null"`
	Username      string `json:"username" gorm:"uniqueIndex"`
	Password      string `json:"-" gorm:"not null"`
	EmailVerified bool   `json:"email_verified" gorm:"not null;default:false"`
}
