// internal/domain/models/nickname.go
package models

import "time"

// NicknameEntry is the uniqueness index document for a nickname.
// ID is the lowercase nickname itself.
type NicknameEntry struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}
