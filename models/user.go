package models

import "time"

type User struct {
	UserID         string    `json:"userid" bson:"userid"`
	Email          string    `json:"email" bson:"email"`
	Password       string    `json:"-" bson:"password"`
	FirstName      string    `json:"firstName" bson:"firstName"`
	LastName       string    `json:"lastName" bson:"lastName"`
	Bio            string    `json:"bio,omitempty" bson:"bio,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty" bson:"profilePicture,omitempty"`
	Followers      []string  `json:"followers,omitempty" bson:"followers,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// UserSummary is the public projection used in suggestions and post authors.
type UserSummary struct {
	UserID         string `json:"userid" bson:"userid"`
	FirstName      string `json:"firstName" bson:"firstName"`
	LastName       string `json:"lastName" bson:"lastName"`
	ProfilePicture string `json:"profilePicture,omitempty" bson:"profilePicture,omitempty"`
	Bio            string `json:"bio,omitempty" bson:"bio,omitempty"`
	Followers      int    `json:"followers" bson:"-"`
}
