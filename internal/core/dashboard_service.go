package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// TrackStats summarises enrollments and revenue of one track.
type TrackStats struct {
	TrackID     string  `json:"trackId"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Enrollments int     `json:"enrollments"`
	Active      int     `json:"active"`
	Completed   int     `json:"completed"`
	Revenue     float64 `json:"revenue"`
}

// DashboardSummary is the admin overview.
type DashboardSummary struct {
	Learners             int          `json:"learners"`
	Tracks               int          `json:"tracks"`
	Courses              int          `json:"courses"`
	ActiveEnrollments    int          `json:"activeEnrollments"`
	CompletedEnrollments int          `json:"completedEnrollments"`
	Revenue              float64      `json:"revenue"`
	Outstanding          float64      `json:"outstanding"`
	UnpaidInvoices       int          `json:"unpaidInvoices"`
	PerTrack             []TrackStats `json:"tracks"`
}

type dashboardService struct {
	store *db.Store
}

// NewDashboardService creates a new DashboardService instance.
func NewDashboardService(store *db.Store) DashboardService {
	return &dashboardService{store: store}
}

func (s *dashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	learners, err := s.store.Users.CountByRole(ctx, models.RoleLearner)
	if err != nil {
		return nil, fmt.Errorf("failed to count learners: %w", err)
	}
	tracks, err := s.store.Tracks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	courses, err := s.store.Courses.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	enrollments, err := s.store.Enrollments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	invoices, err := s.store.Invoices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	sum := &DashboardSummary{
		Learners: learners,
		Tracks:   len(tracks),
		Courses:  len(courses),
	}
	perTrack := make(map[string]*TrackStats, len(tracks))
	for _, t := range tracks {
		perTrack[t.ID] = &TrackStats{TrackID: t.ID, Name: t.Name, Slug: t.Slug}
	}

	for _, e := range enrollments {
		stats := perTrack[e.TrackID]
		switch e.Status {
		case models.EnrollmentActive:
			sum.ActiveEnrollments++
		case models.EnrollmentCompleted:
			sum.CompletedEnrollments++
		}
		if stats == nil {
			continue
		}
		if e.IsEffective() {
			stats.Enrollments++
		}
		switch e.Status {
		case models.EnrollmentActive:
			stats.Active++
		case models.EnrollmentCompleted:
			stats.Completed++
		}
	}

	for _, inv := range invoices {
		switch inv.Status {
		case models.InvoicePaid:
			sum.Revenue += inv.Amount
			if stats := perTrack[inv.TrackID]; stats != nil {
				stats.Revenue += inv.Amount
			}
		case models.InvoiceUnpaid:
			sum.Outstanding += inv.Amount
			sum.UnpaidInvoices++
		}
	}

	sum.PerTrack = make([]TrackStats, 0, len(perTrack))
	for _, stats := range perTrack {
		sum.PerTrack = append(sum.PerTrack, *stats)
	}
	sort.Slice(sum.PerTrack, func(i, j int) bool {
		if sum.PerTrack[i].Enrollments != sum.PerTrack[j].Enrollments {
			return sum.PerTrack[i].Enrollments > sum.PerTrack[j].Enrollments
		}
		return sum.PerTrack[i].Name < sum.PerTrack[j].Name
	})
	return sum, nil
}
