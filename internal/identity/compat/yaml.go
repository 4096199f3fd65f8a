package compat

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"idmask/internal/identity/models"
	"idmask/internal/identity/surface"
)

// rowDoc is the YAML form of a Row:
//
//	rows:
//	  - key: IMEI
//	    versions: ">= 26, < 30"
//	    capability: READ_PHONE_STATE
//	    kind: operation
//	    primary: getImei/0
//	    bindings: [getImei/0, getImei/1]
//	  - key: IMEI
//	    versions: ">= 30"
//	    unreachable: true
type rowDoc struct {
	Key         string   `yaml:"key"`
	Versions    string   `yaml:"versions"`
	Unreachable bool     `yaml:"unreachable"`
	Capability  string   `yaml:"capability"`
	Kind        string   `yaml:"kind"`
	Primary     string   `yaml:"primary"`
	Bindings    []string `yaml:"bindings"`
}

type tableDoc struct {
	Rows []rowDoc `yaml:"rows"`
}

// ParseRows decodes compatibility rows from YAML.
func ParseRows(data []byte) ([]Row, error) {
	var doc tableDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode compatibility table: %w", err)
	}

	rows := make([]Row, 0, len(doc.Rows))
	for i, d := range doc.Rows {
		r, err := d.row()
		if err != nil {
			return nil, fmt.Errorf("compatibility table row %d: %w", i, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// LoadRows reads compatibility rows from a YAML file.
func LoadRows(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compatibility table: %w", err)
	}
	return ParseRows(data)
}

func (d rowDoc) row() (Row, error) {
	key, err := models.ParseAttributeKey(d.Key)
	if err != nil {
		return Row{}, err
	}
	r := Row{
		Key:         key,
		Versions:    d.Versions,
		Unreachable: d.Unreachable,
		Capability:  surface.Capability(d.Capability),
	}
	if d.Unreachable {
		return r, nil
	}

	kind, err := surface.ParseKind(d.Kind)
	if err != nil {
		return Row{}, err
	}
	if r.Primary, err = parseTarget(kind, d.Primary); err != nil {
		return Row{}, err
	}
	for _, b := range d.Bindings {
		t, err := parseTarget(kind, b)
		if err != nil {
			return Row{}, err
		}
		r.Bindings = append(r.Bindings, t)
	}
	return r, nil
}

// parseTarget reads "NAME" for fields and "name/arity" for operations. A bare
// operation name means arity 0.
func parseTarget(kind surface.Kind, s string) (surface.Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return surface.Target{}, fmt.Errorf("empty surface name")
	}
	if kind == surface.KindField {
		return surface.Field(s), nil
	}
	name, arityText, found := strings.Cut(s, "/")
	if !found {
		return surface.Op(name, 0), nil
	}
	arity, err := strconv.Atoi(arityText)
	if err != nil || arity < 0 || arity > 1 {
		return surface.Target{}, fmt.Errorf("operation %q: arity must be 0 or 1", s)
	}
	return surface.Op(name, arity), nil
}
