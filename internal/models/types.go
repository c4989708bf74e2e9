package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// Canonical field names shared by every source. Both the batch-file
// parser and the open-API mapper emit records keyed by these.
const (
	FieldName       = "name"
	FieldAddress    = "address"
	FieldPhone      = "phone"
	FieldDepartment = "department"
	FieldKind       = "kind"
)

// RawRecord is one source record before normalization: canonical field
// names mapped to string values. It lives for a single normalization
// step and is discarded afterwards.
type RawRecord map[string]string

// Get returns the trimmed value for a field, or "" if absent.
func (r RawRecord) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// ToFacility builds a canonical facility from the record. The category
// is classified from the name; department and kind go into Extra.
func (r RawRecord) ToFacility() (*Facility, error) {
	f := &Facility{
		Name:    r.Get(FieldName),
		Address: r.Get(FieldAddress),
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.Category = ClassifyCategory(f.Name)
	if phone := r.Get(FieldPhone); phone != "" {
		f.Phone = &phone
	}
	extra := ExtraFields{}
	for _, field := range []string{FieldDepartment, FieldKind} {
		if v := r.Get(field); v != "" {
			extra[field] = v
		}
	}
	if len(extra) > 0 {
		f.Extra = extra
	}
	return f, nil
}

// ExtraFields stores optional source-specific attributes as JSON.
type ExtraFields map[string]string

func (e ExtraFields) Value() (driver.Value, error) {
	if len(e) == 0 {
		return "{}", nil
	}
	return json.Marshal(e)
}

func (e *ExtraFields) Scan(value interface{}) error {
	if value == nil {
		*e = ExtraFields{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return errors.New("failed to scan ExtraFields")
	}
}
