package models

import (
	"encoding/json"
	"fmt"
)

// Snapshot is a complete, immutable configuration of attribute overrides.
// An empty value means "no override, pass the genuine value through".
//
// Snapshot is a plain value: == compares structurally, and every update
// returns a new Snapshot.
type Snapshot struct {
	values [attributeCount]string
}

// Override is one configured (non-empty) attribute value.
type Override struct {
	Key   AttributeKey
	Value string
}

// EmptySnapshot returns the canonical snapshot with no overrides configured.
func EmptySnapshot() Snapshot {
	return Snapshot{}
}

// NewSnapshot builds a snapshot from a key/value map. Keys absent from the map
// stay empty.
func NewSnapshot(values map[AttributeKey]string) (Snapshot, error) {
	var s Snapshot
	for k, v := range values {
		if !k.IsValid() {
			return Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownAttribute, uint8(k))
		}
		s.values[k] = v
	}
	return s, nil
}

// Get returns the override for k, or "" when none is configured.
func (s Snapshot) Get(k AttributeKey) string {
	if !k.IsValid() {
		return ""
	}
	return s.values[k]
}

// With returns a copy of s with k set to value.
func (s Snapshot) With(k AttributeKey, value string) (Snapshot, error) {
	if !k.IsValid() {
		return s, fmt.Errorf("%w: %d", ErrUnknownAttribute, uint8(k))
	}
	s.values[k] = value
	return s, nil
}

// Overrides lists the configured attributes in declared key order.
func (s Snapshot) Overrides() []Override {
	var out []Override
	for i, v := range s.values {
		if v != "" {
			out = append(out, Override{Key: AttributeKey(i), Value: v})
		}
	}
	return out
}

// IsEmpty reports whether no attribute carries an override.
func (s Snapshot) IsEmpty() bool {
	return s == Snapshot{}
}

// snapshotJSON is the persisted layout. Field names are part of the storage
// contract; extra fields written by older versions (androidVersion,
// sdkVersion) are ignored on decode.
type snapshotJSON struct {
	IMEI           string `json:"imei"`
	Brand          string `json:"brand"`
	BuildID        string `json:"buildId"`
	Product        string `json:"product"`
	Model          string `json:"model"`
	Device         string `json:"device"`
	HardwareSerial string `json:"hardwareSerial"`
	PhoneNumber    string `json:"phoneNumber"`
	SimIMSI        string `json:"simImsi"`
	Bootloader     string `json:"bootloader"`
	Fingerprint    string `json:"fingerprint"`
	Manufacturer   string `json:"manufacturer"`
	Board          string `json:"board"`
	DisplayID      string `json:"displayId"`
}

func (j *snapshotJSON) slots() [attributeCount]*string {
	return [attributeCount]*string{
		KeyBrand:          &j.Brand,
		KeyModel:          &j.Model,
		KeyDevice:         &j.Device,
		KeyManufacturer:   &j.Manufacturer,
		KeyProduct:        &j.Product,
		KeyBuildID:        &j.BuildID,
		KeyFingerprint:    &j.Fingerprint,
		KeyBootloader:     &j.Bootloader,
		KeyBoard:          &j.Board,
		KeyDisplayID:      &j.DisplayID,
		KeyHardwareSerial: &j.HardwareSerial,
		KeyIMEI:           &j.IMEI,
		KeyPhoneNumber:    &j.PhoneNumber,
		KeySimIMSI:        &j.SimIMSI,
	}
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	var j snapshotJSON
	for i, p := range j.slots() {
		*p = s.values[i]
	}
	return json.Marshal(j)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var j snapshotJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	var out Snapshot
	for i, p := range j.slots() {
		out.values[i] = *p
	}
	*s = out
	return nil
}
