package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bazaar-market/apiserver/types"
	"github.com/google/uuid"
)

// ReportRepository handles persistence for listing reports.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report types.Report) (types.Report, error) {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.CreatedAt = time.Now().UTC()

	var reporter uuid.NullUUID
	if report.ReporterID != nil {
		reporter = uuid.NullUUID{UUID: *report.ReporterID, Valid: true}
	}

	const query = `
		INSERT INTO reports (id, listing_id, reporter_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, report.ID, report.ListingID, reporter, report.Reason, report.CreatedAt); err != nil {
		return types.Report{}, mapWriteError(err)
	}
	return report, nil
}

// List returns reports newest first. A non-empty search matches the reason
// case-insensitively.
func (r *ReportRepository) List(ctx context.Context, search string, offset, limit int) ([]types.Report, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	pattern := "%"
	if s := strings.TrimSpace(search); s != "" {
		pattern = "%" + escapeLike(s) + "%"
	}

	const countQuery = `SELECT COUNT(1) FROM reports WHERE reason ILIKE $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT r.id, r.listing_id, r.reporter_id, r.reason, r.created_at, COALESCE(l.title, '')
		FROM reports r
		LEFT JOIN listings l ON l.id = r.listing_id
		WHERE r.reason ILIKE $1
		ORDER BY r.created_at DESC, r.id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, pattern, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports := make([]types.Report, 0, limit)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *ReportRepository) Get(ctx context.Context, id uuid.UUID) (types.Report, error) {
	const query = `
		SELECT r.id, r.listing_id, r.reporter_id, r.reason, r.created_at, COALESCE(l.title, '')
		FROM reports r
		LEFT JOIN listings l ON l.id = r.listing_id
		WHERE r.id = $1`
	return scanReport(r.db.QueryRowContext(ctx, query, id))
}

func (r *ReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM reports WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func scanReport(row rowScanner) (types.Report, error) {
	var report types.Report
	var reporter uuid.NullUUID
	err := row.Scan(&report.ID, &report.ListingID, &reporter, &report.Reason, &report.CreatedAt, &report.ListingTitle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Report{}, ErrNotFound
		}
		return types.Report{}, err
	}
	if reporter.Valid {
		id := reporter.UUID
		report.ReporterID = &id
	}
	return report, nil
}
