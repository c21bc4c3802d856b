package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

var fixedNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	s := newStore(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

var columns = []string{
	"order_id", "aoi_name", "order_type", "start_date", "end_date", "num_bands", "product_bundle",
	"cadence", "scene_count", "mosaic_name", "aoi_area_sqkm", "clipped", "batch_id", "gage_id", "submitted_at",
	"status", "status_message", "archive_path", "archived_files", "updated_at",
}

func sceneRecord(id string) store.OrderRecord {
	return store.OrderRecord{
		OrderID:       id,
		AOIName:       "Navarro",
		OrderType:     store.OrderTypeScene,
		StartDate:     "2023-01-01",
		EndDate:       "2023-06-30",
		BandConfig:    "four_bands",
		ProductBundle: "analytic_sr_udm2",
		Cadence:       "weekly",
		SceneCount:    20,
		Clipped:       true,
		BatchID:       "batch-1",
		GageID:        "11468000",
	}
}

func TestAppend_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	rec := sceneRecord("order-1")
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(rec.OrderID, rec.AOIName, rec.OrderType, rec.StartDate, rec.EndDate, rec.BandConfig, rec.ProductBundle,
			rec.Cadence, rec.SceneCount, rec.MosaicName, rec.AOIAreaSqKm, rec.Clipped, rec.BatchID, rec.GageID,
			fixedNow, store.OrderStatusSubmitted).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAppend_Duplicate(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnError(&pq.Error{Code: uniqueViolation, Message: "duplicate key value violates unique constraint"})

	err := s.Append(context.Background(), sceneRecord("order-1"))
	if !errors.Is(err, store.ErrDuplicateOrderID) {
		t.Errorf("expected ErrDuplicateOrderID, got %v", err)
	}
}

func TestAppend_OtherErrorIsNotDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`INSERT INTO orders`).WillReturnError(sql.ErrConnDone)

	err := s.Append(context.Background(), sceneRecord("order-1"))
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("expected the driver error to be wrapped, got %v", err)
	}
	if errors.Is(err, store.ErrDuplicateOrderID) {
		t.Errorf("a connection error must not be reported as a duplicate")
	}
}

func TestUpdateStatus_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE orders`).
		WithArgs("order-1", store.OrderStatusSuccess, "success", "s3://flowzero/x", 3, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateStatus(context.Background(), "order-1", store.OrderStatusSuccess,
		store.StatusFields{Message: "success", ArchivePath: "s3://flowzero/x", ArchivedFiles: 3})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateStatus(context.Background(), "missing", store.OrderStatusFailed, store.StatusFields{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	submitted := fixedNow.Add(-time.Hour)
	mock.ExpectQuery(`SELECT .+ FROM orders WHERE order_id = \$1`).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"order-1", "Navarro", "PSScope", "2023-01-01", "2023-06-30", "four_bands", "analytic_sr_udm2",
			"weekly", 20, "", 12.5, true, "batch-1", "11468000", submitted,
			"success", "success", "s3://flowzero/x", 3, fixedNow,
		))

	rec, err := s.Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Status != store.OrderStatusSuccess {
		t.Errorf("got status %s, want success", rec.Status)
	}
	if rec.OrderType != store.OrderTypeScene {
		t.Errorf("got type %s, want PSScope", rec.OrderType)
	}
	if rec.UpdatedAt == nil || !rec.UpdatedAt.Equal(fixedNow) {
		t.Errorf("got UpdatedAt %v, want %v", rec.UpdatedAt, fixedNow)
	}
	if rec.ArchivedFiles != 3 || rec.AOIAreaSqKm != 12.5 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT .+ FROM orders WHERE order_id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListByBatch(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	rows := sqlmock.NewRows(columns).
		AddRow("o1", "Navarro", "PSScope", "2023-01-01", "2023-06-30", "four_bands", "analytic_sr_udm2",
			"weekly", 20, "", 0.0, true, "batch-1", "", fixedNow, "submitted", "", "", 0, nil).
		AddRow("o2", "Eel", "PSScope", "2023-07-01", "2023-12-31", "four_bands", "analytic_sr_udm2",
			"weekly", 18, "", 0.0, true, "batch-1", "", fixedNow, "failed", "failed", "", 0, fixedNow)
	mock.ExpectQuery(`SELECT .+ FROM orders WHERE batch_id = \$1 ORDER BY seq`).
		WithArgs("batch-1").
		WillReturnRows(rows)

	records, err := s.ListByBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("ListByBatch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].UpdatedAt != nil {
		t.Error("expected nil UpdatedAt for NULL column")
	}
	if records[1].Status != store.OrderStatusFailed {
		t.Errorf("got status %s, want failed", records[1].Status)
	}
}

func TestListByBatch_EmptyID(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	records, err := s.ListByBatch(context.Background(), "")
	if err != nil || len(records) != 0 {
		t.Errorf("got %v, %v; want no records", records, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no query expected: %v", err)
	}
}

func TestList_DatabaseError(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT .+ FROM orders ORDER BY seq`).WillReturnError(sql.ErrConnDone)

	if _, err := s.List(context.Background()); err == nil {
		t.Error("expected error, got nil")
	}
}
