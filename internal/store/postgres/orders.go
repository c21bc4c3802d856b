package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/store"
)

const uniqueViolation = "23505"

const orderColumns = `order_id, aoi_name, order_type, start_date, end_date, num_bands, product_bundle,
	cadence, scene_count, mosaic_name, aoi_area_sqkm, clipped, batch_id, gage_id, submitted_at,
	status, status_message, archive_path, archived_files, updated_at`

func (s *Store) Append(ctx context.Context, rec store.OrderRecord) error {
	if rec.Status == "" {
		rec.Status = store.OrderStatusSubmitted
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = s.now()
	}

	query := `
		INSERT INTO orders (order_id, aoi_name, order_type, start_date, end_date, num_bands, product_bundle,
			cadence, scene_count, mosaic_name, aoi_area_sqkm, clipped, batch_id, gage_id, submitted_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.OrderID, rec.AOIName, rec.OrderType, rec.StartDate, rec.EndDate, rec.BandConfig, rec.ProductBundle,
		rec.Cadence, rec.SceneCount, rec.MosaicName, rec.AOIAreaSqKm, rec.Clipped, rec.BatchID, rec.GageID,
		rec.SubmittedAt, rec.Status,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrDuplicateOrderID, rec.OrderID)
	}
	if err != nil {
		return fmt.Errorf("insert order %s: %w", rec.OrderID, err)
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, orderID string, status store.OrderStatus, fields store.StatusFields) error {
	query := `
		UPDATE orders
		SET status = $2,
			status_message = CASE WHEN $3 = '' THEN status_message ELSE $3 END,
			archive_path = CASE WHEN $4 = '' THEN archive_path ELSE $4 END,
			archived_files = CASE WHEN $5 = 0 THEN archived_files ELSE $5 END,
			updated_at = $6
		WHERE order_id = $1
	`
	res, err := s.db.ExecContext(ctx, query, orderID, status, fields.Message, fields.ArchivePath, fields.ArchivedFiles, s.now())
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, orderID)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, orderID string) (*store.OrderRecord, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE order_id = $1"

	rec, err := scanOrder(s.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) ListByBatch(ctx context.Context, batchID string) ([]store.OrderRecord, error) {
	if batchID == "" {
		return nil, nil
	}
	query := "SELECT " + orderColumns + " FROM orders WHERE batch_id = $1 ORDER BY seq"
	return s.list(ctx, query, batchID)
}

func (s *Store) List(ctx context.Context) ([]store.OrderRecord, error) {
	return s.list(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY seq")
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]store.OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []store.OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (*store.OrderRecord, error) {
	var rec store.OrderRecord
	var updatedAt sql.NullTime
	err := row.Scan(
		&rec.OrderID, &rec.AOIName, &rec.OrderType, &rec.StartDate, &rec.EndDate,
		&rec.BandConfig, &rec.ProductBundle, &rec.Cadence, &rec.SceneCount, &rec.MosaicName,
		&rec.AOIAreaSqKm, &rec.Clipped, &rec.BatchID, &rec.GageID, &rec.SubmittedAt,
		&rec.Status, &rec.StatusMessage, &rec.ArchivePath, &rec.ArchivedFiles, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		rec.UpdatedAt = &t
	}
	return &rec, nil
}
