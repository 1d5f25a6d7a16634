package ast

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// IdentityField is the document identity field. MongoDB includes it in
// projections by default, and that default is preserved here.
const IdentityField = "_id"

// ProjectionError reports a projection specification this driver
// cannot honor. It is a permanent unsupported-feature failure.
type ProjectionError struct {
	Field  string
	Reason string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("unsupported projection for field '%s': %s", e.Field, e.Reason)
}

// ProjectField is one entry of a projection specification.
type ProjectField struct {
	Path    string
	Include bool
}

// ProjectStage is a $project pipeline stage. The projection model is
// include-list-only: listed fields are included, everything else is
// excluded, and the identity field follows the store's native default
// of included-unless-excluded. Excluding any field other than the
// identity field is rejected at construction.
type ProjectStage struct {
	Fields []ProjectField
}

func (s ProjectStage) node() {}
func (s ProjectStage) Doc() bson.D {
	return bson.D{{Key: "$project", Value: s.Spec()}}
}

// Spec returns the bare projection document, as used by the find
// command's projection field.
func (s ProjectStage) Spec() bson.D {
	spec := make(bson.D, len(s.Fields))
	for i, f := range s.Fields {
		flag := int32(1)
		if !f.Include {
			flag = 0
		}
		spec[i] = bson.E{Key: f.Path, Value: flag}
	}
	return spec
}

// NewProjectStage validates the include-list-only rule: an exclusion
// is permitted for the identity field and nothing else.
func NewProjectStage(fields []ProjectField) (ProjectStage, error) {
	for _, f := range fields {
		if !f.Include && f.Path != IdentityField {
			return ProjectStage{}, &ProjectionError{
				Field:  f.Path,
				Reason: "only the identity field may be excluded",
			}
		}
	}
	return ProjectStage{Fields: fields}, nil
}

// Columns returns the ordered output field names the execution adapter
// must use to map result documents to 1-based column indices. The
// identity field is appended when absent and not explicitly excluded.
func (s ProjectStage) Columns() []string {
	cols := make([]string, 0, len(s.Fields)+1)
	identitySeen := false
	for _, f := range s.Fields {
		if f.Path == IdentityField {
			identitySeen = true
		}
		if f.Include {
			cols = append(cols, f.Path)
		}
	}
	if !identitySeen {
		cols = append(cols, IdentityField)
	}
	return cols
}

// ParseProjection interprets a raw projection document, as found in a
// parsed command text's $project stage or find projection. Values must
// be literal boolean or integer inclusion flags; computed or
// expression projections are rejected.
func ParseProjection(spec bson.D) (ProjectStage, error) {
	fields := make([]ProjectField, 0, len(spec))
	for _, e := range spec {
		include, err := projectionFlag(e.Key, e.Value)
		if err != nil {
			return ProjectStage{}, err
		}
		fields = append(fields, ProjectField{Path: e.Key, Include: include})
	}
	return NewProjectStage(fields)
}

func projectionFlag(field string, v any) (bool, error) {
	switch flag := v.(type) {
	case bool:
		return flag, nil
	case int32:
		return flag != 0, nil
	case int64:
		return flag != 0, nil
	case int:
		return flag != 0, nil
	default:
		return false, &ProjectionError{
			Field:  field,
			Reason: fmt.Sprintf("projection value must be a boolean or integer flag, got %T", v),
		}
	}
}
