// Package model defines the entities the realtime core reads and writes.
package model

import "time"

// User is the slice of a user profile the realtime core touches. Profiles are
// created and owned elsewhere; the core only flips the presence fields.
type User struct {
	ID       string     `bson:"_id" json:"_id"`
	Username string     `bson:"username" json:"username"`
	Avatar   string     `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsOnline bool       `bson:"isOnline" json:"isOnline"`
	LastSeen *time.Time `bson:"lastSeen,omitempty" json:"lastSeen"`
}

// Profile is the public part of a user, used to expand reaction authors.
type Profile struct {
	ID       string `bson:"_id" json:"_id"`
	Username string `bson:"username" json:"username"`
	Avatar   string `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

// Presence is the persisted online flag and last-seen timestamp of a user.
type Presence struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen"`
}
