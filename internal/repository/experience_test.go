package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"explorer/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newExperience(title, province, district, city string, images ...string) *models.Experience {
	return &models.Experience{
		Title:         title,
		Description:   "A memorable visit",
		ProvinceID:    province,
		ProvinceName:  "Province " + province,
		DistrictID:    district,
		DistrictName:  "District " + district,
		CityName:      city,
		Images:        datatypes.JSONSlice[string](images),
		CreatedBy:     "user-1",
		CreatedByName: "Alice",
	}
}

func TestExperienceRepository_CRUD(t *testing.T) {
	repo := NewExperienceRepository(newTestDB(t))
	ctx := context.Background()

	exp := newExperience("Temple of the Tooth", "2", "21", "Kandy", "https://cdn/a.jpg")
	require.NoError(t, repo.Create(ctx, exp))
	require.NotEmpty(t, exp.ID)

	got, err := repo.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Temple of the Tooth", got.Title)
	assert.Equal(t, []string{"https://cdn/a.jpg"}, []string(got.Images))

	got.Title = "Sri Dalada Maligawa"
	got.Images = datatypes.JSONSlice[string]{}
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sri Dalada Maligawa", updated.Title)
	assert.Empty(t, updated.Images)
	assert.Equal(t, "user-1", updated.CreatedBy)

	require.NoError(t, repo.Delete(ctx, exp.ID))
	_, err = repo.GetByID(ctx, exp.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	assert.NoError(t, repo.Delete(ctx, exp.ID), "deleting twice is not an error")
	assert.True(t, models.IsCode(repo.Update(ctx, updated), models.CodeNotFound))
}

func TestExperienceRepository_CreateAssignsEmptyImages(t *testing.T) {
	repo := NewExperienceRepository(newTestDB(t))
	ctx := context.Background()

	exp := newExperience("No photos", "1", "11", "Colombo")
	exp.Images = nil
	require.NoError(t, repo.Create(ctx, exp))

	got, err := repo.GetByID(ctx, exp.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Images)
	assert.Empty(t, got.Images)
}

func TestExperienceRepository_ListFiltersAndOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewExperienceRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fixtures := []*models.Experience{
		newExperience("Galle Fort", "3", "31", "Galle"),
		newExperience("Kandy Lake", "2", "21", "Kandy"),
		newExperience("Peradeniya Gardens", "2", "21", "Peradeniya"),
		newExperience("Nuwara Eliya tea", "2", "23", "Nuwara Eliya"),
	}
	for i, exp := range fixtures {
		exp.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, exp))
	}

	all, err := repo.List(ctx, models.ExperienceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Nuwara Eliya tea", all[0].Title, "newest first")
	assert.Equal(t, "Galle Fort", all[3].Title)

	central, err := repo.List(ctx, models.ExperienceFilter{ProvinceID: "2"})
	require.NoError(t, err)
	assert.Len(t, central, 3)

	kandy, err := repo.List(ctx, models.ExperienceFilter{ProvinceID: "2", DistrictID: "21", CityName: "Kandy"})
	require.NoError(t, err)
	require.Len(t, kandy, 1)
	assert.Equal(t, "Kandy Lake", kandy[0].Title)

	none, err := repo.List(ctx, models.ExperienceFilter{CityName: "Atlantis"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestExperienceRepository_CountImageReferences(t *testing.T) {
	repo := NewExperienceRepository(newTestDB(t))
	ctx := context.Background()

	shared := "https://ik.imagekit.io/demo/experiences/shared.jpg"
	a := newExperience("A", "1", "11", "Colombo", shared, "https://ik.imagekit.io/demo/experiences/a.jpg")
	b := newExperience("B", "1", "11", "Colombo", shared)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	count, err := repo.CountImageReferences(ctx, shared, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountImageReferences(ctx, "https://ik.imagekit.io/demo/experiences/a.jpg", a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = repo.CountImageReferences(ctx, "https://ik.imagekit.io/demo/experiences/shared", a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "matches whole elements only")
}

func TestExperienceRepository_CountImageReferencesPostgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewExperienceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "experiences" WHERE id <> $1 AND images @> CAST($2 AS jsonb)`)).
		WithArgs("exp-1", `["https://cdn/x.jpg"]`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountImageReferences(context.Background(), "https://cdn/x.jpg", "exp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperienceRepository_StoreFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewExperienceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "experiences" WHERE id = $1`)).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "exp-1")
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperienceRepository_RewriteImages(t *testing.T) {
	repo := NewExperienceRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newExperience("http", "1", "11", "Colombo",
			"http://old.herokuapp.com/uploads/experiences/a.jpg", "https://cdn/b.jpg")))
	}
	require.NoError(t, repo.Create(ctx, newExperience("secure", "1", "11", "Colombo", "https://cdn/c.jpg")))

	rewrite := func(url string) (string, bool) {
		if strings.HasPrefix(url, "http://") && strings.Contains(url, "herokuapp.com") {
			return "https://" + strings.TrimPrefix(url, "http://"), true
		}
		return url, false
	}

	stats, err := repo.RewriteImages(ctx, 2, rewrite)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Scanned)
	assert.Equal(t, 5, stats.Updated)

	all, err := repo.List(ctx, models.ExperienceFilter{})
	require.NoError(t, err)
	for _, exp := range all {
		for _, image := range exp.Images {
			assert.True(t, strings.HasPrefix(image, "https://"), image)
		}
	}

	stats, err = repo.RewriteImages(ctx, 2, rewrite)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Updated, "rewrite is idempotent")
}
