package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aglago/g-clients-sub000/internal/models"
)

func strPtr(s string) *string { return &s }

func TestCreateTrack_CollidingNamesGetSuffixes(t *testing.T) {
	env := newTestEnv(t, true)

	a := env.createTrack(t, "React 101", 100)
	b := env.createTrack(t, "React 101", 120)
	c := env.createTrack(t, "React  101!", 150)

	assert.Equal(t, "react-101", a.Slug)
	assert.Equal(t, "react-101-1", b.Slug)
	assert.Equal(t, "react-101-2", c.Slug)
}

func TestCreateTrack_Validation(t *testing.T) {
	env := newTestEnv(t, true)
	_, err := env.tracks.CreateTrack(context.Background(), "admin-1", models.CreateTrackRequest{Name: "  ", Price: 10})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.tracks.CreateTrack(context.Background(), "admin-1", models.CreateTrackRequest{Name: "Go", Price: -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateTrack_SlugFrozenUnlessRegenerated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	cached, err := env.tracks.GetTrackBySlug(ctx, "react-101")
	require.NoError(t, err)
	assert.Equal(t, 100.0, cached.Price)

	price := 180.0
	updated, err := env.tracks.UpdateTrack(ctx, "admin-1", track.ID, models.UpdateTrackRequest{Name: strPtr("React Fundamentals"), Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "react-101", updated.Slug)

	fresh, err := env.tracks.GetTrackBySlug(ctx, "react-101")
	require.NoError(t, err)
	assert.Equal(t, 180.0, fresh.Price)
	assert.Equal(t, "React Fundamentals", fresh.Name)

	updated, err = env.tracks.UpdateTrack(ctx, "admin-1", track.ID, models.UpdateTrackRequest{RegenerateSlug: true})
	require.NoError(t, err)
	assert.Equal(t, "react-fundamentals", updated.Slug)

	_, err = env.tracks.GetTrackBySlug(ctx, "react-101")
	assert.ErrorIs(t, err, ErrTrackNotFound)
	_, err = env.tracks.GetTrackBySlug(ctx, "react-fundamentals")
	assert.NoError(t, err)
}

func TestUpdateTrack_RegenerateKeepsOwnSlug(t *testing.T) {
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	updated, err := env.tracks.UpdateTrack(context.Background(), "admin-1", track.ID, models.UpdateTrackRequest{RegenerateSlug: true})
	require.NoError(t, err)
	assert.Equal(t, "react-101", updated.Slug)
}

func TestCourses_KeepTrackReferencesInSync(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	react := env.createTrack(t, "React 101", 100)
	data := env.createTrack(t, "Data Science", 250)

	hooks, err := env.courses.CreateCourse(ctx, models.CreateCourseRequest{Title: "Hooks", Description: "State and effects", TrackID: react.ID})
	require.NoError(t, err)
	router, err := env.courses.CreateCourse(ctx, models.CreateCourseRequest{Title: "Routing", Description: "Pages", TrackID: react.ID})
	require.NoError(t, err)

	got, err := env.tracks.GetTrack(ctx, react.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{hooks.ID, router.ID}, got.CourseIDs)

	_, err = env.courses.CreateCourse(ctx, models.CreateCourseRequest{Title: "Orphan", Description: "x", TrackID: "missing"})
	assert.ErrorIs(t, err, ErrTrackNotFound)

	_, err = env.courses.UpdateCourse(ctx, router.ID, models.UpdateCourseRequest{TrackID: &data.ID})
	require.NoError(t, err)

	got, err = env.tracks.GetTrack(ctx, react.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{hooks.ID}, got.CourseIDs)
	got, err = env.tracks.GetTrack(ctx, data.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{router.ID}, got.CourseIDs)

	listed, err := env.courses.ListCourses(ctx, data.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Routing", listed[0].Title)

	require.NoError(t, env.courses.DeleteCourse(ctx, "admin-1", hooks.ID))
	got, err = env.tracks.GetTrack(ctx, react.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CourseIDs)
	_, err = env.courses.GetCourse(ctx, hooks.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestDeleteTrack_CascadesCourses(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	course, err := env.courses.CreateCourse(ctx, models.CreateCourseRequest{Title: "Hooks", Description: "x", TrackID: track.ID})
	require.NoError(t, err)
	_, err = env.tracks.GetTrackBySlug(ctx, track.Slug)
	require.NoError(t, err)

	require.NoError(t, env.tracks.DeleteTrack(ctx, "admin-1", track.ID))

	_, err = env.courses.GetCourse(ctx, course.ID)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = env.tracks.GetTrackBySlug(ctx, track.Slug)
	assert.ErrorIs(t, err, ErrTrackNotFound)
	assert.ErrorIs(t, env.tracks.DeleteTrack(ctx, "admin-1", track.ID), ErrTrackNotFound)
}
