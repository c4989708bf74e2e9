package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// ImportRun records one orchestrator invocation and its outcome so an
// operator can audit past runs and pick a resume point.
type ImportRun struct {
	bun.BaseModel `bun:"table:import_runs,alias:ir"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id"`
	RunID        string     `bun:"run_id,unique,notnull" json:"run_id"`
	Source       string     `bun:"source,notnull" json:"source"`
	StartTime    time.Time  `bun:"start_time,notnull" json:"start_time"`
	EndTime      *time.Time `bun:"end_time" json:"end_time,omitempty"`
	Status       string     `bun:"status,notnull" json:"status"`
	SavedCount   int        `bun:"saved_count,default:0" json:"saved_count"`
	UpdatedCount int        `bun:"updated_count,default:0" json:"updated_count"`
	SkippedCount int        `bun:"skipped_count,default:0" json:"skipped_count"`
	FailedUnits  IntArray   `bun:"failed_units,type:json" json:"failed_units"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Run status values.
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusAborted = "aborted"
)

// IntArray stores a slice of ints in SQLite as JSON.
type IntArray []int

func (a IntArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *IntArray) Scan(value interface{}) error {
	if value == nil {
		*a = []int{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("failed to scan IntArray")
	}
}
