package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// ReportRepository defines persistence operations for reports.
type ReportRepository interface {
	Create(ctx context.Context, report types.Report) (types.Report, error)
	List(ctx context.Context, search string, offset, limit int) ([]types.Report, int, error)
	Get(ctx context.Context, id uuid.UUID) (types.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReportService encapsulates moderation use-cases.
type ReportService struct {
	reports  ReportRepository
	listings ListingRepository
	profiles ProfileRepository
}

func NewReportService(reports ReportRepository, listings ListingRepository, profiles ProfileRepository) *ReportService {
	return &ReportService{reports: reports, listings: listings, profiles: profiles}
}

// Create flags a listing. Any signed-in user may report.
func (s *ReportService) Create(ctx context.Context, reporter, listingID uuid.UUID, reason string) (types.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return types.Report{}, fmt.Errorf("%w: reason", ErrMissingField)
	}
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return types.Report{}, err
	}
	return s.reports.Create(ctx, types.Report{
		ListingID:  listingID,
		ReporterID: &reporter,
		Reason:     reason,
	})
}

// List returns reports for administrators, newest first.
func (s *ReportService) List(ctx context.Context, actor uuid.UUID, search string, offset, limit int) ([]types.Report, int, error) {
	if _, err := adminProfile(ctx, s.profiles, actor); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.reports.List(ctx, search, offset, limit)
}

// Delete dismisses a report.
func (s *ReportService) Delete(ctx context.Context, actor, id uuid.UUID) error {
	if _, err := adminProfile(ctx, s.profiles, actor); err != nil {
		return err
	}
	return s.reports.Delete(ctx, id)
}

// Resolve hides the reported listing and deletes the report.
func (s *ReportService) Resolve(ctx context.Context, actor, id uuid.UUID) error {
	if _, err := adminProfile(ctx, s.profiles, actor); err != nil {
		return err
	}
	report, err := s.reports.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.listings.SetStatus(ctx, report.ListingID, types.ListingHidden); err != nil {
		return err
	}
	return s.reports.Delete(ctx, id)
}
