// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sort"
	"strings"
	"sync"
	"time"

	"explorer/internal/assets"
	"explorer/internal/models"
	"explorer/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UserRepoStub is an in-memory repository.UserRepository.
type UserRepoStub struct {
	mu    sync.Mutex
	items map[string]models.User

	// Err, when set, is returned by every method.
	Err error
}

// NewUserRepoStub creates an empty in-memory user repository.
func NewUserRepoStub() *UserRepoStub {
	return &UserRepoStub{items: make(map[string]models.User)}
}

var _ repository.UserRepository = (*UserRepoStub)(nil)

// GetByID fetches a user by id.
func (s *UserRepoStub) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	user, ok := s.items[id]
	if !ok {
		return nil, models.NewNotFoundError("User")
	}
	return &user, nil
}

// GetByUsername returns (nil, nil) when no user matches.
func (s *UserRepoStub) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	username = strings.ToLower(strings.TrimSpace(username))
	for _, user := range s.items {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// Create stores a user, rejecting duplicate usernames.
func (s *UserRepoStub) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	for _, existing := range s.items {
		if existing.Username == user.Username {
			return models.NewConflictError("Username already exists")
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.items[user.ID] = *user
	return nil
}

// Update overwrites a stored user.
func (s *UserRepoStub) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.items[user.ID]; !ok {
		return models.NewNotFoundError("User")
	}
	user.UpdatedAt = time.Now().UTC()
	s.items[user.ID] = *user
	return nil
}

// Remove drops a user, simulating an account deleted after its token was issued.
func (s *UserRepoStub) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// ExperienceRepoStub is an in-memory repository.ExperienceRepository.
type ExperienceRepoStub struct {
	mu    sync.Mutex
	items map[string]models.Experience
	seq   int

	// Err, when set, is returned by every method.
	Err error
	// CountErr, when set, is returned by CountImageReferences.
	CountErr error
}

// NewExperienceRepoStub creates an empty in-memory experience repository.
func NewExperienceRepoStub() *ExperienceRepoStub {
	return &ExperienceRepoStub{items: make(map[string]models.Experience)}
}

var _ repository.ExperienceRepository = (*ExperienceRepoStub)(nil)

// Create stores an experience. Each record is one second newer than the previous one.
func (s *ExperienceRepoStub) Create(_ context.Context, e *models.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Images == nil {
		e.Images = datatypes.JSONSlice[string]{}
	}
	s.seq++
	now := time.Date(2025, 1, 1, 0, 0, s.seq, 0, time.UTC)
	e.CreatedAt = now
	e.UpdatedAt = now
	s.items[e.ID] = clone(*e)
	return nil
}

// GetByID fetches an experience by id.
func (s *ExperienceRepoStub) GetByID(_ context.Context, id string) (*models.Experience, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	e, ok := s.items[id]
	if !ok {
		return nil, models.NewNotFoundError("Experience")
	}
	out := clone(e)
	return &out, nil
}

// List applies the equality filter and orders newest first.
func (s *ExperienceRepoStub) List(_ context.Context, f models.ExperienceFilter) ([]models.Experience, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Experience{}
	for _, e := range s.items {
		if f.ProvinceID != "" && e.ProvinceID != f.ProvinceID {
			continue
		}
		if f.DistrictID != "" && e.DistrictID != f.DistrictID {
			continue
		}
		if f.CityName != "" && e.CityName != f.CityName {
			continue
		}
		out = append(out, clone(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update overwrites the mutable fields of a stored experience.
func (s *ExperienceRepoStub) Update(_ context.Context, e *models.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	stored, ok := s.items[e.ID]
	if !ok {
		return models.NewNotFoundError("Experience")
	}
	e.CreatedBy = stored.CreatedBy
	e.CreatedByName = stored.CreatedByName
	e.CreatedAt = stored.CreatedAt
	e.UpdatedAt = stored.UpdatedAt.Add(time.Second)
	s.items[e.ID] = clone(*e)
	return nil
}

// Delete removes an experience; missing ids succeed.
func (s *ExperienceRepoStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.items, id)
	return nil
}

// CountImageReferences counts other experiences that list url.
func (s *ExperienceRepoStub) CountImageReferences(_ context.Context, url, excludeID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	var n int64
	for id, e := range s.items {
		if id == excludeID {
			continue
		}
		for _, img := range e.Images {
			if img == url {
				n++
				break
			}
		}
	}
	return n, nil
}

// RewriteImages applies rewrite to every stored image.
func (s *ExperienceRepoStub) RewriteImages(_ context.Context, _ int, rewrite func(string) (string, bool)) (repository.RewriteStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats repository.RewriteStats
	for id, e := range s.items {
		stats.Scanned++
		changed := false
		for i, img := range e.Images {
			next, ok := rewrite(img)
			e.Images[i] = next
			changed = changed || ok
		}
		if changed {
			s.items[id] = e
			stats.Updated++
		}
	}
	return stats, nil
}

// Len reports how many experiences are stored.
func (s *ExperienceRepoStub) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func clone(e models.Experience) models.Experience {
	e.Images = append(datatypes.JSONSlice[string]{}, e.Images...)
	return e
}

// AssetDeleterStub records every deletion request and answers with Outcomes, falling back to OutcomeDeleted.
type AssetDeleterStub struct {
	mu       sync.Mutex
	Refs     []string
	Outcomes map[string]assets.Outcome
}

// Delete records ref.
func (s *AssetDeleterStub) Delete(_ context.Context, ref string) assets.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Refs = append(s.Refs, ref)
	if outcome, ok := s.Outcomes[ref]; ok {
		return outcome
	}
	return assets.OutcomeDeleted
}

// Calls returns a copy of the recorded references.
func (s *AssetDeleterStub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Refs...)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
