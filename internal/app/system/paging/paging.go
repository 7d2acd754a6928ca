// internal/app/system/paging/paging.go
package paging

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows returned by list endpoints.
const PageSize = 50

// MaxPageSize caps the ?limit= a caller may ask for.
const MaxPageSize = 100

// Page describes one newest-first window: at most Limit rows created
// before the cursor position.
type Page struct {
	Limit int
	After *Cursor
}

// Cursor is the (created_at, _id) position of the last row on a page.
type Cursor struct {
	CreatedAt time.Time
	ID        primitive.ObjectID
}

// Parse reads ?limit= and ?after= from r. Bad values fall back to the
// first page with the default size.
func Parse(r *http.Request) Page {
	p := Page{Limit: PageSize}
	if s := query.Get(r, "limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			p.Limit = min(n, MaxPageSize)
		}
	}
	if c, ok := DecodeCursor(query.Get(r, "after")); ok {
		p.After = &c
	}
	return p
}

// EncodeCursor renders c as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixMilli(), 10) + ":" + c.ID.Hex()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token made by EncodeCursor.
func DecodeCursor(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}
	ms, hex, ok := strings.Cut(string(b), ":")
	if !ok {
		return Cursor{}, false
	}
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return Cursor{}, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return Cursor{}, false
	}
	return Cursor{CreatedAt: time.UnixMilli(n).UTC(), ID: id}, true
}

// Window returns the filter clause selecting rows after the cursor, or nil
// on the first page.
func (p Page) Window() bson.M {
	if p.After == nil {
		return nil
	}
	return bson.M{"$or": []bson.M{
		{"created_at": bson.M{"$lt": p.After.CreatedAt}},
		{"created_at": p.After.CreatedAt, "_id": bson.M{"$lt": p.After.ID}},
	}}
}

// FindOptions sorts newest first and fetches one extra row so Trim can
// tell whether another page exists.
func (p Page) FindOptions() *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(p.Limit + 1))
}

// Trim drops the look-ahead row and returns the cursor for the next page,
// or "" when rows was the last page.
func Trim[T any](rows *[]T, limit int, pos func(T) Cursor) string {
	if len(*rows) <= limit {
		return ""
	}
	*rows = (*rows)[:limit]
	return EncodeCursor(pos((*rows)[limit-1]))
}

// Merge adds the page window to filter without clobbering an existing $or.
func (p Page) Merge(filter bson.M) bson.M {
	w := p.Window()
	if w == nil {
		return filter
	}
	if len(filter) == 0 {
		return w
	}
	return bson.M{"$and": []bson.M{filter, w}}
}
