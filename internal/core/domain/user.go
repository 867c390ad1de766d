package domain

import "time"

// User models a registered learner.
type User struct {
	UID          string    `json:"uid" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	FullName     string    `json:"fullName" bson:"fullName"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Profile is the public view of a user returned to clients.
type Profile struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func (u *User) Profile() Profile {
	return Profile{UID: u.UID, Email: u.Email, FullName: u.FullName}
}
