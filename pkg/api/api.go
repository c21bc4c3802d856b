// Package api contains the Planet Data, Orders and Basemaps JSON request/response structs.
// This package is shared between the provider client and the archival code.
package api

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb/geojson"
)

// ItemTypePSScene is the PlanetScope scene item type.
const ItemTypePSScene = "PSScene"

// Filter is a node of a Planet search filter tree.
type Filter struct {
	Type      string `json:"type"`
	FieldName string `json:"field_name,omitempty"`
	Config    any    `json:"config"`
}

// DateRangeConfig is the config of a DateRangeFilter.
type DateRangeConfig struct {
	GTE string `json:"gte,omitempty"`
	LTE string `json:"lte,omitempty"`
}

// RangeConfig is the config of a numeric RangeFilter.
type RangeConfig struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// SearchRequest is the request body for POST /data/v1/quick-search.
type SearchRequest struct {
	ItemTypes []string `json:"item_types"`
	Filter    Filter   `json:"filter"`
}

// SearchResponse is the response body of a quick-search call.
type SearchResponse struct {
	Features []SearchFeature `json:"features"`
	Links    Links           `json:"_links"`
}

// SearchFeature is one scene in a search response.
type SearchFeature struct {
	ID         string            `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties SceneProperties   `json:"properties"`
	Links      Links             `json:"_links"`
}

// SceneProperties holds the scene metadata used for selection.
type SceneProperties struct {
	Acquired   time.Time `json:"acquired"`
	CloudCover float64   `json:"cloud_cover"`
	ItemType   string    `json:"item_type,omitempty"`
}

// Links is the HAL-style _links object returned by Planet APIs.
type Links struct {
	Self      string `json:"_self,omitempty"`
	Next      string `json:"_next,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// OrderProduct is one product entry of an order request.
type OrderProduct struct {
	ItemIDs       []string          `json:"item_ids,omitempty"`
	ItemType      string            `json:"item_type,omitempty"`
	ProductBundle string            `json:"product_bundle,omitempty"`
	MosaicName    string            `json:"mosaic_name,omitempty"`
	Geometry      *geojson.Geometry `json:"geometry,omitempty"`
}

// ClipTool clips delivered assets to an AOI. A nil AOI clips to the product geometry.
type ClipTool struct {
	AOI *geojson.Geometry `json:"aoi,omitempty"`
}

// Tool is one entry of an order's tools list.
type Tool struct {
	Clip *ClipTool `json:"clip,omitempty"`
}

// CreateOrderRequest is the request body for POST /compute/ops/orders/v2.
type CreateOrderRequest struct {
	Name       string         `json:"name"`
	SourceType string         `json:"source_type,omitempty"`
	Products   []OrderProduct `json:"products"`
	Tools      []Tool         `json:"tools,omitempty"`
}

// CreateOrderResponse is the part of the order-creation response we rely on.
type CreateOrderResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// Order is the response body of GET /compute/ops/orders/v2/{id}.
type Order struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	State      string     `json:"state"`
	SourceType string     `json:"source_type,omitempty"`
	LastMsg    string     `json:"last_message,omitempty"`
	Links      OrderLinks `json:"_links"`

	// Raw is the undecoded response, archived alongside the assets.
	Raw json.RawMessage `json:"-"`
}

// OrderLinks carries the delivery results of an order.
type OrderLinks struct {
	Self    string        `json:"_self,omitempty"`
	Results []OrderResult `json:"results,omitempty"`
}

// OrderResult is one downloadable file of a finished order.
type OrderResult struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Length   int64  `json:"length,omitempty"`
}

// Order states reported by the Orders API.
const (
	OrderStateQueued    = "queued"
	OrderStateRunning   = "running"
	OrderStateSuccess   = "success"
	OrderStatePartial   = "partial"
	OrderStateFailed    = "failed"
	OrderStateCancelled = "cancelled"
)

// Mosaic is one basemap mosaic.
type Mosaic struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FirstAcquired time.Time `json:"first_acquired"`
	LastAcquired  time.Time `json:"last_acquired"`
	Interval      string    `json:"interval,omitempty"`
}

// MosaicsResponse is one page of GET /basemaps/v1/mosaics.
type MosaicsResponse struct {
	Mosaics []Mosaic `json:"mosaics"`
	Links   Links    `json:"_links"`
}
