package devotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Prayer is a single logged prayer.
type Prayer struct {
	ID       string    `json:"id"`
	UserID   string    `json:"-"`
	Type     string    `json:"type"`
	Location string    `json:"location"`
	Note     string    `json:"note,omitempty"`
	OnTime   bool      `json:"on_time"`
	Date     Timestamp `json:"date"`
}

// Stamp implements Stamped.
func (p Prayer) Stamp() Timestamp { return p.Date }

// Invocation is a recitation counter for one invocation.
type Invocation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"-"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Count         int       `json:"count"`
	LastRecitedAt Timestamp `json:"last_recited_at"`
}

// Stamp implements Stamped.
func (i Invocation) Stamp() Timestamp { return i.LastRecitedAt }

// InvocationOption is an entry of a user's selectable invocation list.
type InvocationOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogEntry is a shared invocation managed from the settings screen.
type CatalogEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"created_at"`
}

// Profile is the persisted per-user profile document.
type Profile struct {
	UserID    string    `json:"user_id"`
	PhotoPath string    `json:"-"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// ValidPrayerTypes lists the five daily prayers.
var ValidPrayerTypes = []string{"Fajr", "Dhuhr", "Asr", "Maghrib", "Isha"}

// Prayer locations.
const (
	LocationHome   = "maison"
	LocationMosque = "mosquée"
)

// ValidLocations lists where a prayer may be performed.
var ValidLocations = []string{LocationHome, LocationMosque}

// ValidCategories lists the invocation categories.
var ValidCategories = []string{"matin", "soir", "après-prière", "autres"}

// DefaultInvocationOptions seeds an empty option list.
var DefaultInvocationOptions = []string{
	"Astaghfirullah",
	"Allahu Akbar",
	"SubhanAllah",
	"Alhamdulillah",
}

const maxNoteLength = 2000

// PrayerInput captures the data required to log a prayer.
type PrayerInput struct {
	UserID   string
	Type     string
	Location string
	Note     string
	OnTime   bool
}

// Validate ensures the input fields meet the domain constraints.
func (i PrayerInput) Validate() error {
	var problems []string

	if i.UserID == "" {
		problems = append(problems, "user_id is required")
	}
	if !contains(ValidPrayerTypes, strings.TrimSpace(i.Type)) {
		problems = append(problems, fmt.Sprintf("type must be one of: %s", strings.Join(ValidPrayerTypes, ", ")))
	}
	if !contains(ValidLocations, strings.TrimSpace(i.Location)) {
		problems = append(problems, fmt.Sprintf("location must be one of: %s", strings.Join(ValidLocations, ", ")))
	}
	if len(i.Note) > maxNoteLength {
		problems = append(problems, "note must be at most 2000 characters")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// PrayerPatch lists the mutable prayer fields; nil leaves a field untouched.
type PrayerPatch struct {
	Type     *string
	Location *string
	Note     *string
	OnTime   *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p PrayerPatch) IsEmpty() bool {
	return p.Type == nil && p.Location == nil && p.Note == nil && p.OnTime == nil
}

// Validate checks the provided fields.
func (p PrayerPatch) Validate() error {
	var problems []string

	if p.IsEmpty() {
		problems = append(problems, "at least one field must be provided")
	}
	if p.Type != nil && !contains(ValidPrayerTypes, strings.TrimSpace(*p.Type)) {
		problems = append(problems, fmt.Sprintf("type must be one of: %s", strings.Join(ValidPrayerTypes, ", ")))
	}
	if p.Location != nil && !contains(ValidLocations, strings.TrimSpace(*p.Location)) {
		problems = append(problems, fmt.Sprintf("location must be one of: %s", strings.Join(ValidLocations, ", ")))
	}
	if p.Note != nil && len(*p.Note) > maxNoteLength {
		problems = append(problems, "note must be at most 2000 characters")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// InvocationInput captures the data required to record an invocation.
type InvocationInput struct {
	UserID   string
	Name     string
	Category string
	Count    int
}

// Validate ensures the input fields meet the domain constraints.
func (i InvocationInput) Validate() error {
	var problems []string

	if i.UserID == "" {
		problems = append(problems, "user_id is required")
	}
	if strings.TrimSpace(i.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !contains(ValidCategories, strings.TrimSpace(i.Category)) {
		problems = append(problems, fmt.Sprintf("category must be one of: %s", strings.Join(ValidCategories, ", ")))
	}
	if i.Count < 1 {
		problems = append(problems, "count must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Repository encapsulates persistence for the tracker. Timestamps named in
// records are assigned by the store at write time.
type Repository interface {
	CreatePrayer(ctx context.Context, prayer Prayer) (Prayer, error)
	UpdatePrayer(ctx context.Context, userID, prayerID string, patch PrayerPatch) (Prayer, error)
	DeletePrayer(ctx context.Context, userID, prayerID string) error
	ListPrayers(ctx context.Context, userID string) ([]Prayer, error)

	CreateInvocation(ctx context.Context, inv Invocation) (Invocation, error)
	IncrementInvocation(ctx context.Context, userID, invocationID string) (Invocation, error)
	DeleteInvocation(ctx context.Context, userID, invocationID string) error
	ListInvocations(ctx context.Context, userID string) ([]Invocation, error)

	ListInvocationOptions(ctx context.Context, userID string) ([]InvocationOption, error)
	CreateInvocationOption(ctx context.Context, userID string, opt InvocationOption) error
	DeleteInvocationOption(ctx context.Context, userID, optionID string) error

	ListCatalog(ctx context.Context) ([]CatalogEntry, error)
	CreateCatalogEntry(ctx context.Context, entry CatalogEntry) (CatalogEntry, error)
	DeleteCatalogEntry(ctx context.Context, entryID string) error

	GetProfile(ctx context.Context, userID string) (Profile, error)
	SetProfilePhoto(ctx context.Context, userID, photoPath string) (Profile, error)

	Subscriber
}

// Subscriber delivers full snapshots of a user's collections every time
// they change. The first snapshot is delivered immediately. Both calls
// block until ctx is done or the subscription fails.
type Subscriber interface {
	SubscribePrayers(ctx context.Context, userID string, fn func([]Prayer)) error
	SubscribeInvocations(ctx context.Context, userID string, fn func([]Invocation)) error
}

// ErrNotFound indicates the requested record does not exist for the user.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a duplicate identifier or name.
var ErrConflict = errors.New("record already exists")

// ErrInvalidInput indicates the provided data failed validation.
var ErrInvalidInput = errors.New("invalid input")

// ErrMissingUserID indicates a required user id was absent.
var ErrMissingUserID = errors.New("user id is required")

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for new records.
type IDGenerator interface {
	NewID() string
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
