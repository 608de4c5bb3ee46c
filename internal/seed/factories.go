package seed

import (
	"fmt"
	"strings"
	"time"

	"explorer/internal/geo"
	"explorer/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"
)

var (
	titleTemplates = []string{
		"%s morning in %s",
		"A %s day around %s",
		"Exploring %s corners of %s",
		"%s sunset over %s",
		"Street food and %s walks in %s",
		"Our %s weekend in %s",
	}

	highlights = []string{
		"tea estates", "temple visit", "train ride", "beach walk", "spice garden",
		"waterfall hike", "local market", "lagoon boat trip", "rice and curry lunch",
		"elephant sighting", "colonial fort", "rock climb", "night bazaar",
	}
)

// Factory builds demo users and experiences from the location hierarchy.
type Factory struct {
	faker     *gofakeit.Faker
	locations *geo.Hierarchy
	maxDays   int
	now       func() time.Time
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(locations *geo.Hierarchy, seed int64, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 90
	}
	return &Factory{
		faker:     gofakeit.New(seed),
		locations: locations,
		maxDays:   maxDays,
		now:       time.Now,
	}
}

// BuildUser returns an unsaved user whose username is unique for index n.
func (f *Factory) BuildUser(n int, passwordHash string) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	return &models.User{
		Name:         first + " " + last,
		Username:     usernameFor(first, last, n),
		PasswordHash: passwordHash,
	}
}

// usernameFor keeps only characters accepted at registration.
func usernameFor(first, last string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(first + "." + last) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	base := strings.Trim(b.String(), ".")
	if len(base) > 40 {
		base = base[:40]
	}
	if base == "" {
		base = "traveller"
	}
	return fmt.Sprintf("%s%d", base, n)
}

// BuildExperience returns an unsaved experience by author at a random city of the hierarchy.
func (f *Factory) BuildExperience(author *models.User) *models.Experience {
	provinces := f.locations.Provinces()
	province := provinces[f.faker.Number(0, len(provinces)-1)]
	district := province.Districts[f.faker.Number(0, len(province.Districts)-1)]
	city := district.Cities[f.faker.Number(0, len(district.Cities)-1)]

	title := fmt.Sprintf(f.faker.RandomString(titleTemplates), capitalize(f.faker.Adjective()), city)
	description := fmt.Sprintf("Highlights: %s and %s.\n\n%s",
		f.faker.RandomString(highlights),
		f.faker.RandomString(highlights),
		f.faker.Paragraph(2, 4, 12, "\n\n"),
	)

	images := make(datatypes.JSONSlice[string], f.faker.Number(0, 4))
	for i := range images {
		images[i] = fmt.Sprintf("https://picsum.photos/seed/%s/1200/800", f.faker.UUID())
	}

	created := f.now().Add(-time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute)

	return &models.Experience{
		Title:         truncate(title, 200),
		Description:   description,
		ProvinceID:    province.ID,
		ProvinceName:  province.Name,
		DistrictID:    district.ID,
		DistrictName:  district.Name,
		CityName:      city,
		Images:        images,
		CreatedBy:     author.ID,
		CreatedByName: author.Name,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
