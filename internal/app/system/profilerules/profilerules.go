// Package profilerules holds the rules for public profiles: nickname
// format, which fields may be disclosed, social handles, and profile
// picture uploads.
package profilerules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/civichub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/civichub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
)

// MaxNicknameLen is the longest nickname kept after sanitizing.
const MaxNicknameLen = 30

// MaxBioLen is the longest bio accepted, in characters.
const MaxBioLen = 500

// MaxPictureBytes is the upload limit for profile pictures (5MB).
const MaxPictureBytes = 5 << 20

// Profile field keys.
const (
	FieldFirstName             = "firstName"
	FieldLastName              = "lastName"
	FieldState                 = "state"
	FieldCongressionalDistrict = "congressionalDistrict"
	FieldCity                  = "city"
	FieldBio                   = "bio"
	FieldSocialMedia           = "socialMedia"
	FieldProfilePicture        = "profilePicture"
	FieldOrganization          = "organization"
)

// RequiredFields are always public and cannot be hidden.
var RequiredFields = []string{FieldFirstName, FieldLastName, FieldState, FieldCongressionalDistrict}

// OptionalFields may be toggled by the user.
var OptionalFields = []string{FieldCity, FieldBio, FieldSocialMedia, FieldProfilePicture, FieldOrganization}

// SocialPlatforms are the accepted socialMedia keys.
var SocialPlatforms = []string{"bluesky", "facebook", "instagram", "linkedin", "mastodon", "threads", "tiktok", "twitter", "youtube"}

var (
	ErrEmptyNickname = errors.New("nickname must contain at least one letter, digit, or underscore")
	ErrNotImage      = errors.New("profile picture must be a JPEG, PNG, GIF, or WebP image")
	ErrPictureTooBig = errors.New("profile picture must be 5MB or smaller")
	ErrEmptyPicture  = errors.New("profile picture is empty")
	ErrBioTooLong    = fmt.Errorf("bio must be %d characters or fewer", MaxBioLen)
	ErrBioMarkup     = errors.New("bio must be plain text")
)

// UnknownKeysError lists keys outside the accepted set.
type UnknownKeysError struct {
	What string
	Keys []string
}

func (e *UnknownKeysError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.What, strings.Join(e.Keys, ", "))
}

// SanitizeNickname lowercases s, keeps only [a-z0-9_], and truncates to
// MaxNicknameLen.
func SanitizeNickname(s string) (string, error) {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
			if b.Len() == MaxNicknameLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyNickname
	}
	return b.String(), nil
}

// NormalizeVisibleFields unions in the required fields, drops duplicates,
// and rejects unknown keys. The result is sorted.
func NormalizeVisibleFields(fields []string) ([]string, error) {
	allowed := make(map[string]bool, len(RequiredFields)+len(OptionalFields))
	for _, f := range RequiredFields {
		allowed[f] = true
	}
	for _, f := range OptionalFields {
		allowed[f] = true
	}

	set := make(map[string]struct{}, len(fields)+len(RequiredFields))
	var unknown []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !allowed[f] {
			unknown = append(unknown, f)
			continue
		}
		set[f] = struct{}{}
	}
	if len(unknown) > 0 {
		return nil, &UnknownKeysError{What: "profile fields", Keys: unknown}
	}
	for _, f := range RequiredFields {
		set[f] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

// NormalizeSocialMedia trims handles, strips a leading @, and drops empty
// entries. Keys are lowercased and must be known platforms.
func NormalizeSocialMedia(in map[string]string) (map[string]string, error) {
	known := make(map[string]bool, len(SocialPlatforms))
	for _, p := range SocialPlatforms {
		known[p] = true
	}

	out := make(map[string]string, len(in))
	var unknown []string
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if !known[key] {
			unknown = append(unknown, k)
			continue
		}
		handle := strings.TrimSpace(v)
		handle = strings.TrimSpace(strings.TrimPrefix(handle, "@"))
		if handle == "" {
			continue
		}
		out[key] = handle
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownKeysError{What: "social platforms", Keys: unknown}
	}
	return out, nil
}

// NormalizeBio trims s and enforces the length and plain-text rules.
func NormalizeBio(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxBioLen {
		return "", ErrBioTooLong
	}
	if !htmlsanitize.IsPlainText(s) {
		return "", ErrBioMarkup
	}
	return s, nil
}

// pictureTypes maps the accepted raster formats to their stored extension.
// Vector and markup formats are refused since uploads may be served from
// the API origin.
var pictureTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// PictureExtensions lists every extension a stored picture can have.
func PictureExtensions() []string {
	out := make([]string, 0, len(pictureTypes))
	for _, ext := range pictureTypes {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ValidatePicture checks an upload by its leading bytes and size. The
// content type is sniffed from head; whatever the client declared is
// ignored. It returns the detected type and the extension to store under.
func ValidatePicture(head []byte, size int64) (contentType, ext string, err error) {
	if size <= 0 || len(head) == 0 {
		return "", "", ErrEmptyPicture
	}
	if size > MaxPictureBytes {
		return "", "", ErrPictureTooBig
	}
	// No file name is passed, so detection goes by content alone.
	contentType = storage.DetectContentType("", head)
	ext, ok := pictureTypes[contentType]
	if !ok {
		return "", "", ErrNotImage
	}
	return contentType, ext, nil
}

// PictureKey is the storage key for a user's profile picture.
func PictureKey(userID, ext string) string {
	return "profile-pictures/" + userID + "." + ext
}

// PublicProfile is what /api/u/{nickname} returns. Only fields the user
// made visible are set.
type PublicProfile struct {
	Nickname              string            `json:"nickname"`
	IsVerified            bool              `json:"isVerified"`
	FirstName             string            `json:"firstName,omitempty"`
	LastName              string            `json:"lastName,omitempty"`
	State                 string            `json:"state,omitempty"`
	CongressionalDistrict string            `json:"congressionalDistrict,omitempty"`
	City                  string            `json:"city,omitempty"`
	Bio                   string            `json:"bio,omitempty"`
	SocialMedia           map[string]string `json:"socialMedia,omitempty"`
	ProfilePicture        string            `json:"profilePicture,omitempty"`
	Organization          string            `json:"organization,omitempty"`
}

// Public projects u onto its visible fields. orgName is the approved
// organization's display name, if any.
func Public(u models.User, orgName string) PublicProfile {
	visible, err := NormalizeVisibleFields(u.PublicProfileFields)
	if err != nil {
		// Stored keys that are no longer accepted are ignored.
		visible = RequiredFields
	}
	show := make(map[string]bool, len(visible))
	for _, f := range visible {
		show[f] = true
	}

	p := PublicProfile{Nickname: u.Nickname, IsVerified: u.IsVerified}
	if show[FieldFirstName] {
		p.FirstName = u.FirstName
	}
	if show[FieldLastName] {
		p.LastName = u.LastName
	}
	if show[FieldState] {
		p.State = u.State
	}
	if show[FieldCongressionalDistrict] {
		p.CongressionalDistrict = u.CongressionalDistrict
	}
	if show[FieldCity] {
		p.City = u.City
	}
	if show[FieldBio] {
		p.Bio = u.Bio
	}
	if show[FieldSocialMedia] && len(u.SocialMedia) > 0 {
		p.SocialMedia = u.SocialMedia
	}
	if show[FieldProfilePicture] {
		p.ProfilePicture = u.ProfilePicture
	}
	if show[FieldOrganization] {
		p.Organization = orgName
	}
	return p
}
