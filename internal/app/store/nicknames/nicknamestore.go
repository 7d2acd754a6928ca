// Package nicknamestore keeps the nicknames collection and users.nickname
// in step. Each nickname document's _id is the nickname itself, so the
// primary key enforces uniqueness.
package nicknamestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/profilerules"
	"github.com/dalemusser/civichub/internal/app/system/txn"
	"github.com/dalemusser/civichub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrNicknameTaken = errors.New("nickname is already taken")
	ErrNotFound      = errors.New("nickname not found")
	ErrUserNotFound  = errors.New("user not found")
)

type Store struct {
	db    *mongo.Database
	nicks *mongo.Collection
	users *mongo.Collection
	log   *zap.Logger
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		db:    db,
		nicks: db.Collection("nicknames"),
		users: db.Collection("users"),
		log:   logger,
	}
}

// Set sanitizes raw and claims it for userID, releasing the user's previous
// nickname. All writes happen in one transaction. It returns the stored
// nickname and the one it replaced.
func (s *Store) Set(ctx context.Context, userID primitive.ObjectID, raw string) (nick, old string, err error) {
	nick, err = profilerules.SanitizeNickname(raw)
	if err != nil {
		return "", "", err
	}
	uid := userID.Hex()

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var held models.NicknameEntry
		switch err := s.nicks.FindOne(ctx, bson.M{"_id": nick}).Decode(&held); {
		case err == nil && held.UserID != uid:
			return ErrNicknameTaken
		case err != nil && err != mongo.ErrNoDocuments:
			return err
		}

		var u models.User
		proj := options.FindOne().SetProjection(bson.M{"nickname": 1})
		if err := s.users.FindOne(ctx, bson.M{"_id": userID}, proj).Decode(&u); err != nil {
			if err == mongo.ErrNoDocuments {
				return ErrUserNotFound
			}
			return err
		}
		old = u.Nickname
		if old == nick && held.UserID == uid {
			return nil
		}

		if old != "" {
			if _, err := s.nicks.DeleteOne(ctx, bson.M{"_id": old, "user_id": uid}); err != nil {
				return err
			}
		}
		// Drop any stray entry for this user so the user_id index stays 1:1.
		if _, err := s.nicks.DeleteMany(ctx, bson.M{"user_id": uid, "_id": bson.M{"$ne": nick}}); err != nil {
			return err
		}
		if held.UserID == "" {
			_, err := s.nicks.InsertOne(ctx, models.NicknameEntry{ID: nick, UserID: uid, CreatedAt: time.Now().UTC()})
			if err != nil {
				if wafflemongo.IsDup(err) {
					return ErrNicknameTaken
				}
				return err
			}
		}
		_, err := s.users.UpdateOne(ctx, bson.M{"_id": userID},
			bson.M{"$set": bson.M{"nickname": nick, "updated_at": time.Now()}})
		return err
	})
	if err != nil {
		return "", "", err
	}
	return nick, old, nil
}

// Resolve returns the user ID holding nick. Lookups are case-insensitive.
func (s *Store) Resolve(ctx context.Context, nick string) (primitive.ObjectID, error) {
	var e models.NicknameEntry
	err := s.nicks.FindOne(ctx, bson.M{"_id": strings.ToLower(strings.TrimSpace(nick))}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return primitive.NilObjectID, ErrNotFound
	}
	if err != nil {
		return primitive.NilObjectID, err
	}
	oid, err := primitive.ObjectIDFromHex(e.UserID)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}
