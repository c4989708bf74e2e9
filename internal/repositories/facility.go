package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/careseek/importer/internal/models"
)

// FacilityRepo persists canonical facilities. It is the only component
// that touches the store; the orchestrator sees it through an interface.
type FacilityRepo struct {
	db *bun.DB
}

// NewFacilityRepo creates a facility repository.
func NewFacilityRepo(db *bun.DB) *FacilityRepo {
	return &FacilityRepo{db: db}
}

// FindByNaturalKey looks up a facility by its (name, address) pair.
// A missing row returns (nil, nil), not an error.
func (r *FacilityRepo) FindByNaturalKey(ctx context.Context, name, address string) (*models.Facility, error) {
	facility := new(models.Facility)
	err := r.db.NewSelect().
		Model(facility).
		Where("name = ?", name).
		Where("address = ?", address).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return facility, nil
}

// Insert stores a new facility.
func (r *FacilityRepo) Insert(ctx context.Context, facility *models.Facility) error {
	_, err := r.db.NewInsert().Model(facility).Exec(ctx)
	return err
}

// Update applies partial fields to an existing facility by id. Callers
// decide which fields to touch; in particular, coordinates are only
// included when the update is allowed to change them.
func (r *FacilityRepo) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()

	_, err := r.db.NewUpdate().
		Model(&fields).
		Table("facilities").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// SaveRun inserts or finalizes an import run record.
func (r *FacilityRepo) SaveRun(ctx context.Context, run *models.ImportRun) error {
	if run.ID == 0 {
		_, err := r.db.NewInsert().Model(run).Exec(ctx)
		return err
	}
	_, err := r.db.NewUpdate().Model(run).
		Column("status", "end_time", "saved_count", "updated_count", "skipped_count", "failed_units").
		WherePK().
		Exec(ctx)
	return err
}
