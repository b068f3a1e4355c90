package models

import "time"

type UserType string

const (
	UserTypeMasterDistributor UserType = "master_distributor"
	UserTypeDistributor       UserType = "distributor"
	UserTypeEndUser           UserType = "end_user"
)

type User struct {
	ID           int64     `json:"id" db:"id" example:"1"`
	Username     string    `json:"username" db:"username" example:"virat18"`
	Email        string    `json:"email" db:"email" example:"user@example.com"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Profile places a user in the distributor hierarchy. ParentID points at the
// master distributor for a distributor and at the distributor for an end user.
type Profile struct {
	UserID          int64     `json:"user_id" db:"user_id"`
	UserType        UserType  `json:"user_type" db:"user_type"`
	ParentID        *int64    `json:"parent_id,omitempty" db:"parent_id"`
	DistributorCode string    `json:"distributor_code,omitempty" db:"distributor_code"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
