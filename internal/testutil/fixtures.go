package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/civichub/internal/app/system/authutil"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// unusableHash satisfies the users validator but matches no password.
const unusableHash = "!"

// CreateUser inserts a verified user with the given email and role.
func (f *Fixtures) CreateUser(ctx context.Context, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:                    primitive.NewObjectID(),
		Email:                 email,
		EmailCI:               text.Fold(email),
		PasswordHash:          unusableHash,
		Role:                  role,
		FirstName:             "Test",
		LastName:              "Voter",
		Address:               "100 Main Street",
		City:                  "Springfield",
		State:                 "IL",
		ZipCode:               "62704",
		CongressionalDistrict: "IL-13",
		IsVerified:            true,
		PublicProfileFields:   []string{"congressionalDistrict", "firstName", "lastName", "state"},
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateUserWithPassword inserts a user that can sign in with password.
func (f *Fixtures) CreateUserWithPassword(ctx context.Context, email, password string) models.User {
	f.t.Helper()

	hash, err := authutil.HashPassword(password)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	u := f.CreateUser(ctx, email, models.RoleUser)
	if _, err := f.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": u.ID}, bson.M{"$set": bson.M{"password_hash": hash}}); err != nil {
		f.t.Fatalf("set password: %v", err)
	}
	u.PasswordHash = hash
	return u
}

// CreateOrganization inserts an organization administered by adminID.
// The group slug is derived from the name.
func (f *Fixtures) CreateOrganization(ctx context.Context, name, status string, adminID primitive.ObjectID) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		GroupSlug:   strings.ReplaceAll(text.Fold(name), " ", "-"),
		Status:      status,
		AdminUserID: adminID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateCampaign inserts a discoverable campaign running for the next
// thirty days.
func (f *Fixtures) CreateCampaign(ctx context.Context, owner models.Owner, payload models.CampaignPayload) models.Campaign {
	f.t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	c := models.Campaign{
		ID:               primitive.NewObjectID(),
		Owner:            owner,
		Reasoning:        "Because it matters.",
		ActionButtonText: models.DefaultActionButtonText,
		StartDate:        now,
		EndDate:          now.Add(30 * 24 * time.Hour),
		IsDiscoverable:   true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	c.SetPayload(payload)
	if _, err := f.db.Collection("campaigns").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test campaign: %v", err)
	}
	return c
}

// Bill returns a legislation payload for H.R. 1 of the 118th Congress.
func Bill(position string) models.LegislationPayload {
	return models.LegislationPayload{
		Bill:     models.Bill{Congress: 118, Type: "HR", Number: "1", Title: "Lower Energy Costs Act"},
		Position: position,
	}
}
