package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aglago/g-clients-sub000/internal/db"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9 -]`)
	slugSpaces       = regexp.MustCompile(`\s+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// Slugify lower-cases name, drops characters outside [a-z0-9 -], turns spaces into hyphens,
// collapses repeated hyphens and trims hyphens from both ends.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// UniqueSlug returns base, or base suffixed -1, -2, ... so that no track other than
// excludeTrackID owns it.
func UniqueSlug(ctx context.Context, tracks db.TrackRepository, base, excludeTrackID string) (string, error) {
	if base == "" {
		base = "track"
	}
	candidate := base
	for i := 1; ; i++ {
		existing, err := tracks.GetBySlug(ctx, candidate)
		if errors.Is(err, db.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check slug '%s': %w", candidate, err)
		}
		if existing.ID == excludeTrackID {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
