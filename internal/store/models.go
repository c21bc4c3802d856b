// Package store contains the order ledger for flowzero.
package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrderType distinguishes scene orders from basemap orders.
type OrderType string

const (
	OrderTypeScene   OrderType = "PSScope"
	OrderTypeBasemap OrderType = "Basemap (Composite)"
)

// OrderStatus represents the ledger's view of an order's state.
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusSuccess   OrderStatus = "success"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Completed reports whether the status is a terminal success.
func (s OrderStatus) Completed() bool {
	return s == OrderStatusSuccess || s == OrderStatusPartial
}

// Terminal reports whether no further transition is expected.
func (s OrderStatus) Terminal() bool {
	return s.Completed() || s == OrderStatusFailed || s == OrderStatusCancelled
}

// OrderRecord is one submitted order. Only the status fields and the fields
// populated after success are ever changed once a record is appended.
type OrderRecord struct {
	OrderID       string      `json:"order_id"`
	AOIName       string      `json:"aoi_name"`
	OrderType     OrderType   `json:"order_type"`
	StartDate     string      `json:"start_date"`
	EndDate       string      `json:"end_date"`
	BandConfig    string      `json:"num_bands,omitempty"`
	ProductBundle string      `json:"product_bundle,omitempty"`
	Cadence       string      `json:"cadence,omitempty"`
	SceneCount    int         `json:"scene_count,omitempty"`
	MosaicName    string      `json:"mosaic_name,omitempty"`
	AOIAreaSqKm   float64     `json:"aoi_area_sqkm,omitempty"`
	Clipped       bool        `json:"clipped"`
	BatchID       string      `json:"batch_id,omitempty"`
	GageID        string      `json:"gage_id,omitempty"`
	SubmittedAt   time.Time   `json:"timestamp"`
	Status        OrderStatus `json:"status"`

	StatusMessage string     `json:"status_message,omitempty"`
	ArchivePath   string     `json:"archive_path,omitempty"`
	ArchivedFiles int        `json:"archived_files,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// StatusFields are the post-submission fields written with a status update.
// Zero values leave the stored value untouched.
type StatusFields struct {
	Message       string
	ArchivePath   string
	ArchivedFiles int
}

// Apply returns rec with status and fields set.
func (f StatusFields) Apply(rec OrderRecord, status OrderStatus, now time.Time) OrderRecord {
	rec.Status = status
	if f.Message != "" {
		rec.StatusMessage = f.Message
	}
	if f.ArchivePath != "" {
		rec.ArchivePath = f.ArchivePath
	}
	if f.ArchivedFiles != 0 {
		rec.ArchivedFiles = f.ArchivedFiles
	}
	rec.UpdatedAt = &now
	return rec
}

// naiveLayouts are timestamp forms written without a zone offset by earlier
// versions of the ledger. They are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ledgerTime decodes RFC 3339 timestamps and zone-less ones.
type ledgerTime time.Time

func (t *ledgerTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = ledgerTime{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = ledgerTime(parsed)
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = ledgerTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("timestamp %q is neither RFC 3339 nor YYYY-MM-DDTHH:MM:SS[.ffffff]", s)
}

// UnmarshalJSON reads a ledger record. A missing status means the order was
// never checked and is treated as submitted.
func (r *OrderRecord) UnmarshalJSON(data []byte) error {
	type plain OrderRecord
	aux := struct {
		*plain
		SubmittedAt *ledgerTime `json:"timestamp"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.SubmittedAt != nil {
		r.SubmittedAt = time.Time(*aux.SubmittedAt)
	}
	if r.Status == "" {
		r.Status = OrderStatusSubmitted
	}
	return nil
}
