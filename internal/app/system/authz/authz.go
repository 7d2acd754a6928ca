// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/civichub/internal/app/system/auth"
	"github.com/dalemusser/civichub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the identity a write is performed as. Policy code takes an Actor
// explicitly instead of reading the request, so ownership rules can be
// tested without HTTP.
type Actor struct {
	UserID        string
	GroupSlug     string // approved organization the user represents, if any
	Role          string
	Authenticated bool
}

// Anonymous is the actor for visitors without a session.
var Anonymous = Actor{Role: "visitor"}

// IsAdmin reports whether the actor is a site admin.
func (a Actor) IsAdmin() bool {
	return a.Authenticated && a.Role == models.RoleAdmin
}

// ActorFrom builds the actor for the signed-in user on r, or Anonymous.
func ActorFrom(r *http.Request) Actor {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return Anonymous
	}
	if _, err := primitive.ObjectIDFromHex(u.ID); err != nil {
		// Malformed user ID in session; fail closed.
		return Anonymous
	}
	return Actor{
		UserID:        u.ID,
		GroupSlug:     u.GroupSlug,
		Role:          strings.ToLower(u.Role),
		Authenticated: true,
	}
}

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "visitor", "", NilObjectID, false.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current request's user is a site admin.
func IsAdmin(r *http.Request) bool {
	return ActorFrom(r).IsAdmin()
}

// HasAnyRole reports whether the current request's user has any of the given roles.
func HasAnyRole(r *http.Request, roles ...string) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if role == strings.ToLower(strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}
