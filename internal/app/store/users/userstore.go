package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/normalize"
	"github.com/dalemusser/civichub/internal/app/system/profilerules"
	"github.com/dalemusser/civichub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	ErrNotFound       = errors.New("user not found")
	errBadRole        = errors.New(`role must be "user"|"admin"`)
	errNoPassword     = errors.New("password hash is required")
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email_ci": text.Fold(normalize.Email(email))}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing & validating fields.
// The caller hashes the password. Nickname is never set here; claim it
// through the nickname store.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.EmailCI = text.Fold(u.Email)
	u.FirstName = normalize.Name(u.FirstName)
	u.LastName = normalize.Name(u.LastName)
	u.State = normalize.State(u.State)
	u.Nickname = ""
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	switch u.Role {
	case models.RoleUser, models.RoleAdmin:
	default:
		return models.User{}, errBadRole
	}
	if u.PasswordHash == "" {
		return models.User{}, errNoPassword
	}

	fields, err := profilerules.NormalizeVisibleFields(u.PublicProfileFields)
	if err != nil {
		return models.User{}, err
	}
	u.PublicProfileFields = fields

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVisibleFields stores the public profile field list. The list is
// normalized, so the required fields are always present.
func (s *Store) SetVisibleFields(ctx context.Context, id primitive.ObjectID, fields []string) ([]string, error) {
	norm, err := profilerules.NormalizeVisibleFields(fields)
	if err != nil {
		return nil, err
	}
	if err := s.set(ctx, id, bson.M{"public_profile_fields": norm}); err != nil {
		return nil, err
	}
	return norm, nil
}

// SetSocialMedia replaces the user's social handles.
func (s *Store) SetSocialMedia(ctx context.Context, id primitive.ObjectID, handles map[string]string) (map[string]string, error) {
	norm, err := profilerules.NormalizeSocialMedia(handles)
	if err != nil {
		return nil, err
	}
	if err := s.set(ctx, id, bson.M{"social_media": norm}); err != nil {
		return nil, err
	}
	return norm, nil
}

// SetBio replaces the profile bio.
func (s *Store) SetBio(ctx context.Context, id primitive.ObjectID, bio string) error {
	return s.set(ctx, id, bson.M{"bio": bio})
}

// SetProfilePicture records the public URL of the uploaded picture.
func (s *Store) SetProfilePicture(ctx context.Context, id primitive.ObjectID, url string) error {
	return s.set(ctx, id, bson.M{"profile_picture": url})
}

// SetPassword replaces the stored password hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	if hash == "" {
		return errNoPassword
	}
	return s.set(ctx, id, bson.M{"password_hash": hash})
}

// SetGroupSlug links the user to an approved organization.
func (s *Store) SetGroupSlug(ctx context.Context, id primitive.ObjectID, slug string) error {
	return s.set(ctx, id, bson.M{"group_slug": slug})
}

// PromoteAdmin gives the user with email the admin role. changed is false
// when the user was already an admin.
func (s *Store) PromoteAdmin(ctx context.Context, email string) (u *models.User, changed bool, err error) {
	var out models.User
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"email_ci": text.Fold(normalize.Email(email)), "role": bson.M{"$ne": models.RoleAdmin}},
		bson.M{"$set": bson.M{"role": models.RoleAdmin, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == nil {
		return &out, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}
	existing, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
