package models

import (
	"errors"
	"fmt"
	"strings"
)

// AttributeKey identifies one overridable identity value.
// Invariant: the set is closed; every key has a catalogue entry below and a
// surface row in the compatibility table.
type AttributeKey uint8

// Declared order. Reports and snapshot encodings follow it.
const (
	KeyBrand AttributeKey = iota
	KeyModel
	KeyDevice
	KeyManufacturer
	KeyProduct
	KeyBuildID
	KeyFingerprint
	KeyBootloader
	KeyBoard
	KeyDisplayID
	KeyHardwareSerial
	KeyIMEI
	KeyPhoneNumber
	KeySimIMSI

	attributeCount
)

// ErrUnknownAttribute is returned when external input names no catalogued key.
var ErrUnknownAttribute = errors.New("unknown attribute")

type attributeInfo struct {
	name  string // enumeration name, e.g. BUILD_ID
	field string // persisted JSON field, e.g. buildId
	label string // display label used in verification reports
}

var catalogue = [attributeCount]attributeInfo{
	KeyBrand:          {"BRAND", "brand", "Brand"},
	KeyModel:          {"MODEL", "model", "Model"},
	KeyDevice:         {"DEVICE", "device", "Device"},
	KeyManufacturer:   {"MANUFACTURER", "manufacturer", "Manufacturer"},
	KeyProduct:        {"PRODUCT", "product", "Product"},
	KeyBuildID:        {"BUILD_ID", "buildId", "Build ID"},
	KeyFingerprint:    {"FINGERPRINT", "fingerprint", "Fingerprint"},
	KeyBootloader:     {"BOOTLOADER", "bootloader", "Bootloader"},
	KeyBoard:          {"BOARD", "board", "Board"},
	KeyDisplayID:      {"DISPLAY_ID", "displayId", "Display ID"},
	KeyHardwareSerial: {"HARDWARE_SERIAL", "hardwareSerial", "Serial"},
	KeyIMEI:           {"IMEI", "imei", "IMEI"},
	KeyPhoneNumber:    {"PHONE_NUMBER", "phoneNumber", "Phone Number"},
	KeySimIMSI:        {"SIM_IMSI", "simImsi", "SIM IMSI"},
}

// AllKeys returns every key in declared order. The slice is a fresh copy.
func AllKeys() []AttributeKey {
	keys := make([]AttributeKey, attributeCount)
	for i := range keys {
		keys[i] = AttributeKey(i)
	}
	return keys
}

// ParseAttributeKey accepts either the enumeration name (BUILD_ID) or the
// persisted field name (buildId). Matching is case-insensitive.
func ParseAttributeKey(s string) (AttributeKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty key", ErrUnknownAttribute)
	}
	for i, info := range catalogue {
		if strings.EqualFold(s, info.name) || strings.EqualFold(s, info.field) {
			return AttributeKey(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAttribute, s)
}

// IsValid reports whether k is part of the catalogue.
func (k AttributeKey) IsValid() bool {
	return k < attributeCount
}

func (k AttributeKey) String() string {
	if !k.IsValid() {
		return fmt.Sprintf("AttributeKey(%d)", uint8(k))
	}
	return catalogue[k].name
}

// Field returns the persisted JSON field name.
func (k AttributeKey) Field() string {
	if !k.IsValid() {
		return ""
	}
	return catalogue[k].field
}

// Label returns the human-readable name used in verification reports.
func (k AttributeKey) Label() string {
	if !k.IsValid() {
		return k.String()
	}
	return catalogue[k].label
}

func (k AttributeKey) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAttribute, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *AttributeKey) UnmarshalText(text []byte) error {
	parsed, err := ParseAttributeKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
