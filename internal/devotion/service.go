package devotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	// Badges replaces DefaultBadges.
	Badges []Badge
	// Location defines day boundaries for period windows. Defaults to time.Local.
	Location *time.Location
	Recorder Recorder
}

// Service orchestrates the tracker's domain operations.
type Service struct {
	repo     Repository
	clock    Clock
	ids      IDGenerator
	badges   []Badge
	loc      *time.Location
	recorder Recorder
}

// NewService constructs a Service instance with the provided collaborators.
func NewService(repo Repository, clock Clock, ids IDGenerator, opts Options) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}

	badges := opts.Badges
	if badges == nil {
		badges = DefaultBadges()
	}
	if err := validateBadgeTable(badges); err != nil {
		return nil, err
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	table := make([]Badge, len(badges))
	copy(table, badges)

	return &Service{
		repo:     repo,
		clock:    clock,
		ids:      ids,
		badges:   table,
		loc:      loc,
		recorder: recorder,
	}, nil
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// ===== Prayers =====

// LogPrayer records a prayer; the store stamps it.
func (s *Service) LogPrayer(ctx context.Context, input PrayerInput) (Prayer, error) {
	if err := input.Validate(); err != nil {
		return Prayer{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	return s.repo.CreatePrayer(ctx, Prayer{
		ID:       s.ids.NewID(),
		UserID:   input.UserID,
		Type:     strings.TrimSpace(input.Type),
		Location: strings.TrimSpace(input.Location),
		Note:     strings.TrimSpace(input.Note),
		OnTime:   input.OnTime,
	})
}

// UpdatePrayer applies an explicit user edit.
func (s *Service) UpdatePrayer(ctx context.Context, userID, prayerID string, patch PrayerPatch) (Prayer, error) {
	if userID == "" {
		return Prayer{}, ErrMissingUserID
	}
	if prayerID == "" {
		return Prayer{}, ErrNotFound
	}
	if err := patch.Validate(); err != nil {
		return Prayer{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	return s.repo.UpdatePrayer(ctx, userID, prayerID, PrayerPatch{
		Type:     trimPtr(patch.Type),
		Location: trimPtr(patch.Location),
		Note:     trimPtr(patch.Note),
		OnTime:   patch.OnTime,
	})
}

// DeletePrayer removes a prayer.
func (s *Service) DeletePrayer(ctx context.Context, userID, prayerID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if prayerID == "" {
		return ErrNotFound
	}
	return s.repo.DeletePrayer(ctx, userID, prayerID)
}

// ListPrayers returns the user's prayers stamped within the last days days,
// or all of them when days is 0.
func (s *Service) ListPrayers(ctx context.Context, userID string, days int) ([]Prayer, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	prayers, err := s.repo.ListPrayers(ctx, userID)
	if err != nil {
		return nil, err
	}
	if days == 0 {
		return prayers, nil
	}
	return FilterByPeriod(prayers, days, s.now()), nil
}

// ===== Invocations =====

// RecordInvocation records a recitation counter; the store stamps it.
func (s *Service) RecordInvocation(ctx context.Context, input InvocationInput) (Invocation, error) {
	if err := input.Validate(); err != nil {
		return Invocation{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	return s.repo.CreateInvocation(ctx, Invocation{
		ID:       s.ids.NewID(),
		UserID:   input.UserID,
		Name:     strings.TrimSpace(input.Name),
		Category: strings.TrimSpace(input.Category),
		Count:    input.Count,
	})
}

// IncrementInvocation adds one recitation and refreshes the timestamp.
func (s *Service) IncrementInvocation(ctx context.Context, userID, invocationID string) (Invocation, error) {
	if userID == "" {
		return Invocation{}, ErrMissingUserID
	}
	if invocationID == "" {
		return Invocation{}, ErrNotFound
	}
	return s.repo.IncrementInvocation(ctx, userID, invocationID)
}

// DeleteInvocation removes an invocation counter.
func (s *Service) DeleteInvocation(ctx context.Context, userID, invocationID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if invocationID == "" {
		return ErrNotFound
	}
	return s.repo.DeleteInvocation(ctx, userID, invocationID)
}

// ListInvocations returns the invocations recited within the last days
// days, or all of them when days is 0.
func (s *Service) ListInvocations(ctx context.Context, userID string, days int) ([]Invocation, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	invocations, err := s.repo.ListInvocations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if days == 0 {
		return invocations, nil
	}
	return FilterByPeriod(invocations, days, s.now()), nil
}

// TodayInvocations returns the invocations recited since local midnight.
func (s *Service) TodayInvocations(ctx context.Context, userID string) ([]Invocation, error) {
	return s.ListInvocations(ctx, userID, 1)
}

// ===== Invocation options =====

// InvocationOptions lists the user's options, seeding the defaults when
// the list is empty.
func (s *Service) InvocationOptions(ctx context.Context, userID string) ([]InvocationOption, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	options, err := s.repo.ListInvocationOptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(options) > 0 {
		return options, nil
	}

	seeded := make([]InvocationOption, 0, len(DefaultInvocationOptions))
	for _, name := range DefaultInvocationOptions {
		opt := InvocationOption{ID: s.ids.NewID(), Name: name}
		if err := s.repo.CreateInvocationOption(ctx, userID, opt); err != nil {
			return nil, fmt.Errorf("seed invocation options: %w", err)
		}
		seeded = append(seeded, opt)
	}
	return seeded, nil
}

// AddInvocationOption appends an option. Names are unique regardless of case.
func (s *Service) AddInvocationOption(ctx context.Context, userID, name string) (InvocationOption, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return InvocationOption{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	existing, err := s.InvocationOptions(ctx, userID)
	if err != nil {
		return InvocationOption{}, err
	}
	for _, opt := range existing {
		if strings.EqualFold(opt.Name, name) {
			return InvocationOption{}, fmt.Errorf("%w: invocation option %q", ErrConflict, opt.Name)
		}
	}

	opt := InvocationOption{ID: s.ids.NewID(), Name: name}
	if err := s.repo.CreateInvocationOption(ctx, userID, opt); err != nil {
		return InvocationOption{}, err
	}
	return opt, nil
}

// RemoveInvocationOption deletes the first option carrying exactly name.
func (s *Service) RemoveInvocationOption(ctx context.Context, userID, name string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	options, err := s.repo.ListInvocationOptions(ctx, userID)
	if err != nil {
		return err
	}
	for _, opt := range options {
		if opt.Name == name {
			return s.repo.DeleteInvocationOption(ctx, userID, opt.ID)
		}
	}
	return ErrNotFound
}

// ===== Catalog =====

// Catalog lists the shared invocation catalog.
func (s *Service) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	return s.repo.ListCatalog(ctx)
}

// AddCatalogEntry appends an invocation to the shared catalog.
func (s *Service) AddCatalogEntry(ctx context.Context, text string) (CatalogEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CatalogEntry{}, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	return s.repo.CreateCatalogEntry(ctx, CatalogEntry{ID: s.ids.NewID(), Text: text})
}

// RemoveCatalogEntry deletes a catalog entry.
func (s *Service) RemoveCatalogEntry(ctx context.Context, entryID string) error {
	if entryID == "" {
		return ErrNotFound
	}
	return s.repo.DeleteCatalogEntry(ctx, entryID)
}

// ===== Statistics and badges =====

// Statistics summarises a period.
type Statistics struct {
	Window                Window         `json:"window"`
	TotalPrayers          int            `json:"total_prayers"`
	MosquePrayers         int            `json:"mosque_prayers"`
	HomePrayers           int            `json:"home_prayers"`
	OnTimePrayers         int            `json:"on_time_prayers"`
	PrayersByType         map[string]int `json:"prayers_by_type"`
	TotalInvocations      int            `json:"total_invocations"`
	InvocationsByCategory map[string]int `json:"invocations_by_category"`
}

// Statistics computes the period statistics for the last days days.
func (s *Service) Statistics(ctx context.Context, userID string, days int) (Statistics, error) {
	if days < 1 {
		return Statistics{}, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	prayers, invocations, err := s.fetchRecords(ctx, userID)
	if err != nil {
		return Statistics{}, err
	}

	window := PeriodWindow(s.now(), days)
	prayers = FilterByWindow(prayers, window)
	invocations = FilterByWindow(invocations, window)

	stats := Statistics{
		Window:                window,
		TotalPrayers:          len(prayers),
		PrayersByType:         make(map[string]int),
		InvocationsByCategory: make(map[string]int),
	}
	for _, p := range prayers {
		switch p.Location {
		case LocationMosque:
			stats.MosquePrayers++
		case LocationHome:
			stats.HomePrayers++
		}
		if p.OnTime {
			stats.OnTimePrayers++
		}
		stats.PrayersByType[p.Type]++
	}
	for _, inv := range invocations {
		stats.TotalInvocations += inv.Count
		stats.InvocationsByCategory[inv.Category] += inv.Count
	}
	return stats, nil
}

// BadgeTable returns a copy of the configured badge table.
func (s *Service) BadgeTable() []Badge {
	out := make([]Badge, len(s.badges))
	copy(out, s.badges)
	return out
}

// BadgeReport lists the badges earned over a period.
type BadgeReport struct {
	Window    *Window `json:"window,omitempty"`
	Totals    Totals  `json:"totals"`
	Earned    []Badge `json:"earned"`
	Available int     `json:"available"`
}

// BadgeReport evaluates the badge table over the last days days, or over
// every record when days is 0.
func (s *Service) BadgeReport(ctx context.Context, userID string, days int) (BadgeReport, error) {
	if days < 0 {
		return BadgeReport{}, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	prayers, invocations, err := s.fetchRecords(ctx, userID)
	if err != nil {
		return BadgeReport{}, err
	}

	report := BadgeReport{Available: len(s.badges)}
	if days > 0 {
		window := PeriodWindow(s.now(), days)
		prayers = FilterByWindow(prayers, window)
		invocations = FilterByWindow(invocations, window)
		report.Window = &window
	}

	report.Totals = Tally(prayers, invocations)
	report.Earned = EarnedBadges(report.Totals.TotalPrayers, report.Totals.TotalInvocations, s.badges)
	return report, nil
}

// ===== Profile =====

// ProfileView combines the profile document with all-time achievements.
type ProfileView struct {
	UserID    string    `json:"user_id"`
	PhotoPath string    `json:"-"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Totals    Totals    `json:"totals"`
	Badges    []Badge   `json:"badges"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// Profile returns the user's profile with all-time totals and badges.
func (s *Service) Profile(ctx context.Context, userID string) (ProfileView, error) {
	if userID == "" {
		return ProfileView{}, ErrMissingUserID
	}

	var (
		profile     Profile
		prayers     []Prayer
		invocations []Invocation
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.repo.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})

	g.Go(func() error {
		list, err := s.repo.ListPrayers(ctx, userID)
		if err != nil {
			return err
		}
		prayers = list
		return nil
	})

	g.Go(func() error {
		list, err := s.repo.ListInvocations(ctx, userID)
		if err != nil {
			return err
		}
		invocations = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return ProfileView{}, err
	}

	totals := Tally(prayers, invocations)
	return ProfileView{
		UserID:    userID,
		PhotoPath: profile.PhotoPath,
		Totals:    totals,
		Badges:    EarnedBadges(totals.TotalPrayers, totals.TotalInvocations, s.badges),
		UpdatedAt: profile.UpdatedAt,
	}, nil
}

// SetProfilePhoto stores the object path of an uploaded profile photo.
func (s *Service) SetProfilePhoto(ctx context.Context, userID, photoPath string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrMissingUserID
	}
	if strings.TrimSpace(photoPath) == "" {
		return Profile{}, fmt.Errorf("%w: photo path is required", ErrInvalidInput)
	}
	return s.repo.SetProfilePhoto(ctx, userID, photoPath)
}

func (s *Service) fetchRecords(ctx context.Context, userID string) ([]Prayer, []Invocation, error) {
	if userID == "" {
		return nil, nil, ErrMissingUserID
	}

	var (
		prayers     []Prayer
		invocations []Invocation
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := s.repo.ListPrayers(ctx, userID)
		if err != nil {
			return err
		}
		prayers = list
		return nil
	})

	g.Go(func() error {
		list, err := s.repo.ListInvocations(ctx, userID)
		if err != nil {
			return err
		}
		invocations = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prayers, invocations, nil
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}
