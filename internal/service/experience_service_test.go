package service

import (
	"context"
	"errors"
	"testing"

	"explorer/internal/assets"
	"explorer/internal/models"
	"explorer/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = &models.User{ID: uuid.NewString(), Name: "Alice", Username: "alice1"}
	bob   = &models.User{ID: uuid.NewString(), Name: "Bob", Username: "bob1"}
)

func kandyWalk() ExperienceInput {
	return ExperienceInput{
		Title:        "Kandy Lake Walk",
		Description:  "Lovely evening",
		ProvinceID:   "2",
		ProvinceName: "Central Province",
		DistrictID:   "21",
		DistrictName: "Kandy District",
		CityName:     "Kandy",
		Images:       []string{},
	}
}

func newExperienceService(t *testing.T) (*ExperienceService, *testutil.ExperienceRepoStub, *testutil.AssetDeleterStub) {
	t.Helper()
	repo := testutil.NewExperienceRepoStub()
	deleter := &testutil.AssetDeleterStub{}
	return NewExperienceService(repo, nil, deleter, nil), repo, deleter
}

func strPtr(s string) *string { return &s }

func TestExperienceService_CreateSetsAuthorServerSide(t *testing.T) {
	svc, _, _ := newExperienceService(t)

	created, err := svc.Create(context.Background(), alice, kandyWalk())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, alice.ID, created.CreatedBy)
	assert.Equal(t, "Alice", created.CreatedByName)

	fetched, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, fetched.Title)
	assert.Equal(t, created.CreatedBy, fetched.CreatedBy)
	assert.Empty(t, fetched.Images)
}

func TestExperienceService_CreateFillsLocationNames(t *testing.T) {
	svc, _, _ := newExperienceService(t)

	in := kandyWalk()
	in.ProvinceName = ""
	in.DistrictName = ""
	in.Images = []string{" https://ik.imagekit.io/demo/a.jpg ", ""}

	created, err := svc.Create(context.Background(), alice, in)
	require.NoError(t, err)
	assert.Equal(t, "Central Province", created.ProvinceName)
	assert.Equal(t, "Kandy District", created.DistrictName)
	assert.Equal(t, []string{"https://ik.imagekit.io/demo/a.jpg"}, []string(created.Images))
}

func TestExperienceService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ExperienceInput)
		msg    string
	}{
		{"missing title", func(in *ExperienceInput) { in.Title = "  " }, "Title is required"},
		{"missing description", func(in *ExperienceInput) { in.Description = "" }, "Description is required"},
		{"missing province", func(in *ExperienceInput) { in.ProvinceID = "" }, "Province is required"},
		{"missing district", func(in *ExperienceInput) { in.DistrictID = "" }, "District is required"},
		{"missing city", func(in *ExperienceInput) { in.CityName = "" }, "City is required"},
		{"district outside province", func(in *ExperienceInput) { in.DistrictID = "11" }, "District does not belong to the selected province"},
		{"unknown province without name", func(in *ExperienceInput) {
			in.ProvinceID = "99"
			in.ProvinceName = ""
		}, "Province name is required"},
		{"too many images", func(in *ExperienceInput) {
			in.Images = make([]string, 11)
			for i := range in.Images {
				in.Images[i] = "https://example.com/" + uuid.NewString()
			}
		}, "A maximum of 10 images is allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newExperienceService(t)
			in := kandyWalk()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), alice, in)
			require.Error(t, err)
			assert.Equal(t, 400, models.StatusOf(err))
			assert.Equal(t, tt.msg, err.Error())
			assert.Zero(t, repo.Len())
		})
	}
}

func TestExperienceService_ListFilters(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newExperienceService(t)

	first, err := svc.Create(ctx, alice, kandyWalk())
	require.NoError(t, err)
	galle := kandyWalk()
	galle.Title = "Galle Fort"
	galle.ProvinceID, galle.ProvinceName = "3", "Southern Province"
	galle.DistrictID, galle.DistrictName = "31", "Galle District"
	galle.CityName = "Galle"
	second, err := svc.Create(ctx, bob, galle)
	require.NoError(t, err)

	all, err := svc.List(ctx, models.ExperienceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	central, err := svc.List(ctx, models.ExperienceFilter{ProvinceID: "2"})
	require.NoError(t, err)
	require.Len(t, central, 1)
	assert.Equal(t, first.ID, central[0].ID)

	none, err := svc.List(ctx, models.ExperienceFilter{ProvinceID: "9"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestExperienceService_GetMissing(t *testing.T) {
	svc, _, _ := newExperienceService(t)

	_, err := svc.Get(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, 404, models.StatusOf(err))
	assert.Equal(t, "Experience not found", err.Error())
}

func TestExperienceService_UpdateOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newExperienceService(t)
	created, err := svc.Create(ctx, alice, kandyWalk())
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob, created.ID, ExperiencePatch{Title: strPtr("Hijacked")})
	require.Error(t, err)
	assert.Equal(t, 403, models.StatusOf(err))
	assert.Equal(t, "You can only edit your own experiences", err.Error())

	unchanged, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kandy Lake Walk", unchanged.Title)

	_, err = svc.Update(ctx, alice, uuid.NewString(), ExperiencePatch{})
	require.Error(t, err)
	assert.Equal(t, 404, models.StatusOf(err))
}

func TestExperienceService_UpdateAppliesOnlyProvidedFields(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newExperienceService(t)
	created, err := svc.Create(ctx, alice, kandyWalk())
	require.NoError(t, err)

	images := []string{"https://ik.imagekit.io/demo/lake.jpg"}
	updated, err := svc.Update(ctx, alice, created.ID, ExperiencePatch{
		Title:  strPtr("Kandy Lake at Dusk"),
		Images: &images,
	})
	require.NoError(t, err)
	assert.Equal(t, "Kandy Lake at Dusk", updated.Title)
	assert.Equal(t, "Lovely evening", updated.Description)
	assert.Equal(t, images, []string(updated.Images))
	assert.Equal(t, alice.ID, updated.CreatedBy)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	_, err = svc.Update(ctx, alice, created.ID, ExperiencePatch{Title: strPtr("   ")})
	require.Error(t, err)
	assert.Equal(t, "Title is required", err.Error())
}

func TestExperienceService_UpdateLocationRefreshesNames(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newExperienceService(t)
	created, err := svc.Create(ctx, alice, kandyWalk())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, alice, created.ID, ExperiencePatch{
		DistrictID: strPtr("22"),
		CityName:   strPtr("Dambulla"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Matale District", updated.DistrictName)
	assert.Equal(t, "Central Province", updated.ProvinceName)
}

func TestExperienceService_DeleteOwnership(t *testing.T) {
	ctx := context.Background()
	svc, repo, deleter := newExperienceService(t)
	in := kandyWalk()
	in.Images = []string{"https://ik.imagekit.io/demo/a.jpg"}
	created, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)

	err = svc.Delete(ctx, bob, created.ID)
	require.Error(t, err)
	assert.Equal(t, 403, models.StatusOf(err))
	assert.Equal(t, "You can only delete your own experiences", err.Error())
	assert.Equal(t, 1, repo.Len())
	assert.Empty(t, deleter.Calls())
}

func TestExperienceService_DeleteCascadesEveryImage(t *testing.T) {
	ctx := context.Background()
	svc, repo, deleter := newExperienceService(t)
	deleter.Outcomes = map[string]assets.Outcome{
		"https://ik.imagekit.io/demo/a.jpg": assets.OutcomeFailed,
	}

	in := kandyWalk()
	in.Images = []string{
		"https://ik.imagekit.io/demo/a.jpg",
		"http://localhost:5000/uploads/experiences/b.jpg",
		"https://example.com/c.jpg",
	}
	created, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, alice, created.ID))
	assert.Equal(t, in.Images, deleter.Calls())
	assert.Zero(t, repo.Len())

	err = svc.Delete(ctx, alice, created.ID)
	require.Error(t, err)
	assert.Equal(t, 404, models.StatusOf(err))
}

func TestExperienceService_DeleteKeepsSharedImages(t *testing.T) {
	ctx := context.Background()
	svc, _, deleter := newExperienceService(t)
	shared := "https://ik.imagekit.io/demo/shared.jpg"

	in := kandyWalk()
	in.Images = []string{shared, "https://ik.imagekit.io/demo/own.jpg"}
	mine, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)

	other := kandyWalk()
	other.Images = []string{shared}
	_, err = svc.Create(ctx, bob, other)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, alice, mine.ID))
	assert.Equal(t, []string{"https://ik.imagekit.io/demo/own.jpg"}, deleter.Calls())
}

func TestExperienceService_DeleteReferenceCountFailureKeepsAsset(t *testing.T) {
	ctx := context.Background()
	svc, repo, deleter := newExperienceService(t)
	in := kandyWalk()
	in.Images = []string{"https://ik.imagekit.io/demo/a.jpg"}
	created, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)

	repo.CountErr = errors.New("query failed")
	require.NoError(t, svc.Delete(ctx, alice, created.ID))
	assert.Empty(t, deleter.Calls())
	assert.Zero(t, repo.Len())
}

func TestSameIdentity(t *testing.T) {
	id := uuid.New()

	assert.True(t, sameIdentity(id.String(), id.String()))
	assert.True(t, sameIdentity(id.String(), " "+uuid.MustParse(id.String()).URN()+" "))
	assert.True(t, sameIdentity("64b7f0c2a1", "64B7F0C2A1"))
	assert.False(t, sameIdentity(id.String(), uuid.NewString()))
	assert.False(t, sameIdentity("", ""))
}
