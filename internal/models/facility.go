package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Facility is the canonical record for one physical service location.
// (Name, Address) is the natural key; every upsert is resolved against it.
type Facility struct {
	bun.BaseModel `bun:"table:facilities,alias:f"`

	ID        int64       `bun:"id,pk,autoincrement" json:"id"`
	Name      string      `bun:"name,notnull" json:"name"`
	Category  Category    `bun:"category,notnull" json:"category"`
	Address   string      `bun:"address,notnull" json:"address"`
	Latitude  float64     `bun:"latitude,default:0" json:"latitude"`
	Longitude float64     `bun:"longitude,default:0" json:"longitude"`
	Phone     *string     `bun:"phone" json:"phone,omitempty"`
	Extra     ExtraFields `bun:"extra,type:json" json:"extra,omitempty"`
	CreatedAt time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// BeforeUpdate refreshes the timestamp on modifications.
func (f *Facility) BeforeUpdate(ctx context.Context, query *bun.UpdateQuery) error {
	f.UpdatedAt = time.Now()
	return nil
}

// Validate checks that required facility fields are present.
func (f *Facility) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(f.Address) == "" {
		return errors.New("address is required")
	}
	return nil
}

// Coordinates returns the facility position. The zero pair means the
// facility has not been geocoded yet.
func (f *Facility) Coordinates() Coordinates {
	return Coordinates{Latitude: f.Latitude, Longitude: f.Longitude}
}

// HasCoordinates reports whether a real position has been stored.
func (f *Facility) HasCoordinates() bool {
	return !f.Coordinates().IsZero()
}

// Coordinates is a latitude/longitude pair. {0,0} is the sentinel for
// "not geocoded" and must never be treated as a real location.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether the pair is the ungeocoded sentinel.
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}
