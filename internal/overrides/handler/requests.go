package handler

import (
	"fmt"
	"slices"

	"idmask/internal/identity/models"
	dErrors "idmask/pkg/domain-errors"
)

// maxValueLen bounds one override value.
const maxValueLen = 512

// SetAttributeRequest is the body of PUT /api/v1/config/{key}. An empty
// value clears the override.
type SetAttributeRequest struct {
	Value *string `json:"value"`
}

// Validate implements httputil.Validatable.
func (r *SetAttributeRequest) Validate() error {
	if r.Value == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "value is required")
	}
	if len(*r.Value) > maxValueLen {
		return dErrors.New(dErrors.CodeInvalidInput, "value must be at most 512 bytes")
	}
	return nil
}

// ReplaceConfigRequest is the body of PUT /api/v1/config: attribute field or
// enumeration names mapped to override values. Attributes left out are
// cleared. Every key must name an attribute.
type ReplaceConfigRequest map[string]string

// Validate implements httputil.Validatable.
func (r *ReplaceConfigRequest) Validate() error {
	if *r == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "configuration object is required")
	}
	_, err := r.Snapshot()
	return err
}

// Snapshot converts the request into the snapshot to store.
func (r *ReplaceConfigRequest) Snapshot() (models.Snapshot, error) {
	names := make([]string, 0, len(*r))
	for name := range *r {
		names = append(names, name)
	}
	slices.Sort(names)

	values := make(map[models.AttributeKey]string, len(names))
	seen := make(map[models.AttributeKey]string, len(names))
	for _, name := range names {
		key, err := models.ParseAttributeKey(name)
		if err != nil {
			return models.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("unknown attribute %q", name))
		}
		if prev, dup := seen[key]; dup {
			return models.Snapshot{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("attributes %q and %q name the same override", prev, name))
		}
		value := (*r)[name]
		if len(value) > maxValueLen {
			return models.Snapshot{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must be at most 512 bytes", name))
		}
		seen[key] = name
		values[key] = value
	}
	snap, err := models.NewSnapshot(values)
	if err != nil {
		return models.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid configuration")
	}
	return snap, nil
}

// VerificationResponse is the body of GET /api/v1/verification.
type VerificationResponse struct {
	Report          models.VerificationReport `json:"report"`
	RestartRequired bool                      `json:"restart_required"`
}

// CurrentDeviceResponse is the body of GET /api/v1/device/current.
type CurrentDeviceResponse struct {
	Attributes []models.Observation `json:"attributes"`
}

// ExportResponse is the body of POST /api/v1/script/export.
type ExportResponse struct {
	Path string `json:"path"`
}
