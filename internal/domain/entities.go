package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Category is the fixed set of story genres
type Category string

const (
	CategoryRealLife   Category = "realLife"
	CategorySciFi      Category = "scifi"
	CategoryMotivation Category = "motivation"
	CategoryComedy     Category = "comedy"
	CategoryHorror     Category = "horror"
	CategoryRomance    Category = "romance"
)

// AllCategories returns every category in display order
func AllCategories() []Category {
	return []Category{
		CategoryHorror,
		CategoryRomance,
		CategoryMotivation,
		CategoryComedy,
		CategorySciFi,
		CategoryRealLife,
	}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryRealLife, CategorySciFi, CategoryMotivation,
		CategoryComedy, CategoryHorror, CategoryRomance:
		return true
	}
	return false
}

// Label returns the human-readable category name
func (c Category) Label() string {
	switch c {
	case CategoryHorror:
		return "Horror"
	case CategoryRomance:
		return "Romance"
	case CategoryMotivation:
		return "Motivation"
	case CategoryComedy:
		return "Comedy"
	case CategorySciFi:
		return "Sci-Fi"
	case CategoryRealLife:
		return "Real Life"
	default:
		return string(c)
	}
}

// ParseCategory accepts either the wire value ("scifi") or the label ("Sci-Fi"),
// case-insensitively
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range AllCategories() {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.Label()) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Story is a read-only snapshot of a remote story record
type Story struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Category      Category `json:"category"`
	CreatorID     string   `json:"creator"`
	CreatorName   string   `json:"creatorName"`
	CoverImageURL string   `json:"coverImageUrl"`
	AudioRef      string   `json:"audioFilePath"` // Blob reference or absolute URL
	Published     bool     `json:"published"`
	ViewCount     uint64   `json:"viewCount"`
	LikeCount     uint64   `json:"likeCount"`
	IsSaved       bool     `json:"isSaved"` // Per-viewer, derived by the server
}

// HasAudio returns true if an audio resource has been attached
func (s Story) HasAudio() bool {
	return s.AudioRef != ""
}

// Profile field limits
const (
	MaxUsernameLength   = 20
	MaxBioLength        = 200
	MaxPictureURLLength = 200
)

// UserProfile is the per-identity profile. A missing profile means the
// identity still needs onboarding.
type UserProfile struct {
	Username          string `json:"username"`
	Bio               string `json:"bio"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}

// Normalize trims whitespace and truncates every field to its limit
func (p UserProfile) Normalize() UserProfile {
	return UserProfile{
		Username:          truncateRunes(strings.TrimSpace(p.Username), MaxUsernameLength),
		Bio:               truncateRunes(strings.TrimSpace(p.Bio), MaxBioLength),
		ProfilePictureURL: truncateRunes(strings.TrimSpace(p.ProfilePictureURL), MaxPictureURLLength),
	}
}

// Validate checks the limits without modifying the profile
func (p UserProfile) Validate() error {
	switch {
	case strings.TrimSpace(p.Username) == "":
		return fmt.Errorf("%w: username is required", ErrInvalidProfile)
	case utf8.RuneCountInString(p.Username) > MaxUsernameLength:
		return fmt.Errorf("%w: username exceeds %d characters", ErrInvalidProfile, MaxUsernameLength)
	case utf8.RuneCountInString(p.Bio) > MaxBioLength:
		return fmt.Errorf("%w: bio exceeds %d characters", ErrInvalidProfile, MaxBioLength)
	case utf8.RuneCountInString(p.ProfilePictureURL) > MaxPictureURLLength:
		return fmt.Errorf("%w: picture URL exceeds %d characters", ErrInvalidProfile, MaxPictureURLLength)
	}
	return nil
}

// AIGeneratedStory is the text produced by the remote draft generator
type AIGeneratedStory struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Tone        string `json:"tone"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
}

// StoryDraft is the caller's most recent generated draft
type StoryDraft struct {
	ID     string           `json:"id"`
	Author string           `json:"author"`
	Draft  AIGeneratedStory `json:"draft"`
}

// DraftRequest asks the remote service to generate a draft
type DraftRequest struct {
	ID     string `json:"id"`
	Genre  string `json:"genre"`
	Tone   string `json:"tone"`
	Prompt string `json:"prompt"`
}

// FormatCount renders view and like counts compactly ("1.2K", "3.4M")
func FormatCount(n uint64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatTime renders a position in seconds as m:ss
func FormatTime(seconds float64) string {
	if seconds != seconds || seconds < 0 { // NaN or negative
		return "0:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
