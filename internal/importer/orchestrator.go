// Package importer drives one ingestion run end to end: fetch or parse
// units of raw records, normalize them into canonical facilities,
// optionally enrich with coordinates, and upsert into the store while
// tolerating unit- and record-level failures.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/careseek/importer/internal/models"
	"github.com/careseek/importer/internal/sources/batchfile"
	"github.com/careseek/importer/internal/sources/openapi"
)

// Store is the only persistence surface the orchestrator needs.
type Store interface {
	// FindByNaturalKey returns the facility with this (name, address)
	// pair, or (nil, nil) when none exists.
	FindByNaturalKey(ctx context.Context, name, address string) (*models.Facility, error)
	Insert(ctx context.Context, facility *models.Facility) error
	Update(ctx context.Context, id int64, fields map[string]interface{}) error
}

// PageSource fetches one page of raw records from the remote API.
type PageSource interface {
	FetchPage(ctx context.Context, page, pageSize int) (*openapi.Page, error)
}

// Geocoder resolves unique addresses to coordinates.
type Geocoder interface {
	GeocodeBatch(ctx context.Context, addresses []string) (map[string]*models.Coordinates, error)
}

// Options configure one run.
type Options struct {
	// StartUnit is the first unit (page or row batch, 1-based) to
	// process; earlier units are assumed already committed.
	StartUnit int
	// MaxUnits caps how many units this run processes. 0 = no cap.
	MaxUnits int
	// PageSize is the API page size.
	PageSize int
	// BatchSize is how many file rows form one unit.
	BatchSize int
	// Geocode enables the enrichment step.
	Geocode bool
	// AbortThreshold is the number of failed units after which the run
	// aborts. It is the only fatal mid-run condition.
	AbortThreshold int
	// Encodings is the candidate list for batch-file decoding.
	Encodings []string
}

func (o Options) withDefaults() Options {
	if o.StartUnit <= 0 {
		o.StartUnit = 1
	}
	if o.PageSize <= 0 {
		o.PageSize = 100
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	if o.AbortThreshold <= 0 {
		o.AbortThreshold = 5
	}
	return o
}

// RunState is the accumulated result of one run. It doubles as the run
// summary handed back to the host, even on abort.
type RunState struct {
	CurrentUnit    int   `json:"currentUnit"`
	TotalUnits     int   `json:"totalUnits"` // 0 = unknown
	UnitsProcessed int   `json:"unitsProcessed"`
	SavedCount     int   `json:"savedCount"`
	UpdatedCount   int   `json:"updatedCount"`
	SkippedCount   int   `json:"skippedCount"`
	FailedUnits    []int `json:"failedUnits"`
	// ResumeFrom is the unit a follow-up run should start from.
	// 0 means the run completed and there is nothing to resume.
	ResumeFrom int `json:"resumeFromUnit"`
}

// markResume records the earliest sensible restart point: the first
// failed unit if any, otherwise the given next unit.
func (s *RunState) markResume(next int) {
	if len(s.FailedUnits) > 0 {
		s.ResumeFrom = s.FailedUnits[0]
		return
	}
	s.ResumeFrom = next
}

// AbortError terminates a run once too many units have failed.
type AbortError struct {
	Failures int
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("abort threshold exceeded after %d failed units", e.Failures)
}

// Orchestrator runs imports. One orchestrator may be reused across
// runs; each Run* call produces an independent RunState.
type Orchestrator struct {
	store    Store
	source   PageSource
	geocoder Geocoder
	opts     Options
}

// New creates an orchestrator. source may be nil for file-only use and
// geocoder may be nil when enrichment is disabled.
func New(store Store, source PageSource, geocoder Geocoder, opts Options) *Orchestrator {
	return &Orchestrator{store: store, source: source, geocoder: geocoder, opts: opts.withDefaults()}
}

// RunAPI imports from the paginated source until the computed page
// count (or MaxUnits) is reached. Failed pages are recorded and the run
// continues; only the abort threshold stops it early.
func (o *Orchestrator) RunAPI(ctx context.Context) (*RunState, error) {
	if o.source == nil {
		return nil, errors.New("no page source configured")
	}

	state := &RunState{}
	processed := 0

	for page := o.opts.StartUnit; ; page++ {
		if state.TotalUnits > 0 && page > state.TotalUnits {
			break
		}
		if o.opts.MaxUnits > 0 && processed >= o.opts.MaxUnits {
			state.markResume(page)
			return state, nil
		}
		if err := ctx.Err(); err != nil {
			state.markResume(page)
			return state, err
		}

		state.CurrentUnit = page
		result, err := o.source.FetchPage(ctx, page, o.opts.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				state.markResume(page)
				return state, ctx.Err()
			}
			state.FailedUnits = append(state.FailedUnits, page)
			log.Error().Int("page", page).Err(err).Msg("page fetch failed, continuing")
			if len(state.FailedUnits) > o.opts.AbortThreshold {
				state.markResume(page + 1)
				return state, &AbortError{Failures: len(state.FailedUnits)}
			}
			processed++
			continue
		}

		if state.TotalUnits == 0 {
			state.TotalUnits = openapi.PageCount(result.TotalCount, o.opts.PageSize)
			log.Info().Int("total_pages", state.TotalUnits).Int("total_records", result.TotalCount).
				Msg("starting paginated import")
			if state.TotalUnits == 0 {
				break
			}
		}

		if err := o.processUnit(ctx, state, result.Records); err != nil {
			state.markResume(page)
			return state, err
		}
		state.UnitsProcessed++
		processed++
	}

	state.markResume(0)
	return state, nil
}

// RunFile imports from a delimited batch file supplied as raw bytes of
// unknown encoding. A header that cannot be resolved is a pre-run
// configuration error; row-level problems only skip rows.
func (o *Orchestrator) RunFile(ctx context.Context, raw []byte) (*RunState, error) {
	resolver, err := batchfile.NewResolver(o.opts.Encodings)
	if err != nil {
		return nil, err
	}

	text, encName := resolver.Resolve(raw)
	parsed, err := batchfile.Parse(text)
	if err != nil {
		return nil, err
	}
	log.Info().Str("encoding", encName).Int("rows", len(parsed.Records)).Int("skipped_rows", parsed.Skipped).
		Msg("starting batch-file import")

	batches := splitBatches(parsed.Records, o.opts.BatchSize)

	state := &RunState{TotalUnits: len(batches), SkippedCount: parsed.Skipped}
	processed := 0

	for unit := o.opts.StartUnit; unit <= len(batches); unit++ {
		if o.opts.MaxUnits > 0 && processed >= o.opts.MaxUnits {
			state.markResume(unit)
			return state, nil
		}
		if err := ctx.Err(); err != nil {
			state.markResume(unit)
			return state, err
		}

		state.CurrentUnit = unit
		if err := o.processUnit(ctx, state, batches[unit-1]); err != nil {
			state.markResume(unit)
			return state, err
		}
		state.UnitsProcessed++
		processed++
	}

	state.markResume(0)
	return state, nil
}

// processUnit normalizes, optionally enriches, and upserts one unit's
// records. Record-level failures are counted and never escalate; the
// only error returned is context cancellation during enrichment, which
// happens before any of the unit's store writes begin.
func (o *Orchestrator) processUnit(ctx context.Context, state *RunState, records []models.RawRecord) error {
	facilities := make([]*models.Facility, 0, len(records))
	for _, raw := range records {
		facility, err := raw.ToFacility()
		if err != nil {
			state.SkippedCount++
			log.Warn().Err(err).Str("name", raw.Get(models.FieldName)).Msg("skipping invalid record")
			continue
		}
		facilities = append(facilities, facility)
	}

	var geocoded map[string]*models.Coordinates
	if o.opts.Geocode && o.geocoder != nil && len(facilities) > 0 {
		addresses := uniqueAddresses(facilities)
		var err error
		geocoded, err = o.geocoder.GeocodeBatch(ctx, addresses)
		if err != nil {
			return err
		}
	}

	// Once the write phase begins the whole unit is written out, even
	// if ctx is cancelled mid-loop; the run loop observes cancellation
	// between units. A half-upserted unit would be invisible to the
	// resume bookkeeping.
	writeCtx := context.WithoutCancel(ctx)
	for _, facility := range facilities {
		o.upsert(writeCtx, state, facility, geocoded)
	}
	return nil
}

// upsert writes one facility, preserving previously stored coordinates
// unless this run geocoded the address itself.
func (o *Orchestrator) upsert(ctx context.Context, state *RunState, facility *models.Facility, geocoded map[string]*models.Coordinates) {
	geocodedNow := false
	if coords := geocoded[facility.Address]; coords != nil {
		facility.Latitude = coords.Latitude
		facility.Longitude = coords.Longitude
		geocodedNow = true
	}

	existing, err := o.store.FindByNaturalKey(ctx, facility.Name, facility.Address)
	if err != nil {
		state.SkippedCount++
		log.Error().Err(err).Str("name", facility.Name).Str("address", facility.Address).
			Msg("store lookup failed, skipping record")
		return
	}

	if existing == nil {
		if err := o.store.Insert(ctx, facility); err != nil {
			state.SkippedCount++
			log.Error().Err(err).Str("name", facility.Name).Str("address", facility.Address).
				Msg("store insert failed, skipping record")
			return
		}
		state.SavedCount++
		return
	}

	fields := map[string]interface{}{
		"category": facility.Category,
		"phone":    facility.Phone,
		"extra":    facility.Extra,
	}
	// Coordinates already on the row win over the sentinel; only a
	// fresh geocode from this run, or a first fill, may set them.
	if facility.HasCoordinates() && (geocodedNow || !existing.HasCoordinates()) {
		fields["latitude"] = facility.Latitude
		fields["longitude"] = facility.Longitude
	}

	if err := o.store.Update(ctx, existing.ID, fields); err != nil {
		state.SkippedCount++
		log.Error().Err(err).Str("name", facility.Name).Str("address", facility.Address).
			Msg("store update failed, skipping record")
		return
	}
	state.UpdatedCount++
}

// uniqueAddresses deduplicates addresses across a unit so the geocoder
// is asked about each one exactly once.
func uniqueAddresses(facilities []*models.Facility) []string {
	seen := make(map[string]bool, len(facilities))
	addresses := make([]string, 0, len(facilities))
	for _, f := range facilities {
		if seen[f.Address] {
			continue
		}
		seen[f.Address] = true
		addresses = append(addresses, f.Address)
	}
	return addresses
}

func splitBatches(records []models.RawRecord, size int) [][]models.RawRecord {
	var batches [][]models.RawRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
