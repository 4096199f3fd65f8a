// Package compat resolves which identity surfaces are legible on a given
// platform version with a given set of granted capabilities.
//
// Resolution is table driven: each Row covers one attribute over a platform
// version range. New platform tiers are added as rows, not branches.
package compat

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/Masterminds/semver/v3"

	"idmask/internal/identity/models"
	"idmask/internal/identity/surface"
)

// Tiers holds the two platform versions that split a tiered surface into a
// legacy tier, a current tier, and an unreachable tier.
type Tiers struct {
	First  int
	Second int
}

func (t Tiers) validate(name string) error {
	if t.First <= 0 || t.Second <= t.First {
		return fmt.Errorf("%s thresholds must be positive and ascending, got %d, %d", name, t.First, t.Second)
	}
	return nil
}

// Thresholds configures the tiered telephony and serial surfaces.
type Thresholds struct {
	Telephony Tiers
	Serial    Tiers
}

// DefaultThresholds are API levels 26 and 29 for both tiered surfaces.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Telephony: Tiers{First: 26, Second: 29},
		Serial:    Tiers{First: 26, Second: 29},
	}
}

// Row is one entry of the compatibility table. An empty Versions matches every
// platform version. When Bindings is empty the Primary target is the only one
// bound.
type Row struct {
	Key         models.AttributeKey
	Versions    string
	Unreachable bool
	Capability  surface.Capability
	Primary     surface.Target
	Bindings    []surface.Target
}

type compiledRow struct {
	Row
	constraint *semver.Constraints
}

// Table is an immutable compatibility table.
type Table struct {
	rows []compiledRow
}

type Option func(*options)

type options struct {
	thresholds Thresholds
	rows       []Row
}

// WithThresholds replaces the default tier thresholds.
func WithThresholds(t Thresholds) Option {
	return func(o *options) {
		o.thresholds = t
	}
}

// WithRows replaces the default rows of every attribute the given rows
// mention. Attributes not mentioned keep their default rows.
func WithRows(rows []Row) Option {
	return func(o *options) {
		o.rows = append(o.rows, rows...)
	}
}

// New builds the compatibility table.
func New(opts ...Option) (*Table, error) {
	o := options{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.thresholds.Telephony.validate("telephony"); err != nil {
		return nil, err
	}
	if err := o.thresholds.Serial.validate("serial"); err != nil {
		return nil, err
	}

	rows := defaultRows(o.thresholds)
	if len(o.rows) > 0 {
		overridden := make(map[models.AttributeKey]bool)
		for _, r := range o.rows {
			overridden[r.Key] = true
		}
		rows = slices.DeleteFunc(rows, func(r Row) bool { return overridden[r.Key] })
		rows = append(rows, o.rows...)
	}

	t := &Table{rows: make([]compiledRow, 0, len(rows))}
	for _, r := range rows {
		cr, err := compile(r)
		if err != nil {
			return nil, err
		}
		t.rows = append(t.rows, cr)
	}
	return t, nil
}

func compile(r Row) (compiledRow, error) {
	if !r.Key.IsValid() {
		return compiledRow{}, fmt.Errorf("compatibility row: %w", models.ErrUnknownAttribute)
	}
	cr := compiledRow{Row: r}
	if r.Versions != "" {
		c, err := semver.NewConstraint(r.Versions)
		if err != nil {
			return compiledRow{}, fmt.Errorf("compatibility row %s: versions %q: %w", r.Key, r.Versions, err)
		}
		cr.constraint = c
	}
	if r.Unreachable {
		return cr, nil
	}
	if r.Primary.Kind == 0 || r.Primary.Name == "" {
		return compiledRow{}, fmt.Errorf("compatibility row %s: reachable row needs a primary surface", r.Key)
	}
	if len(cr.Bindings) == 0 {
		cr.Bindings = []surface.Target{r.Primary}
	}
	for _, b := range cr.Bindings {
		if b.Kind != r.Primary.Kind {
			return compiledRow{}, fmt.Errorf("compatibility row %s: binding %s is %s, primary is %s", r.Key, b, b.Kind, r.Primary.Kind)
		}
	}
	return cr, nil
}

// matches reports whether the row applies to v. A nil v is a version that
// does not parse; only rows without a version gate match it.
func (r compiledRow) matches(v *semver.Version) bool {
	if r.constraint == nil {
		return true
	}
	return v != nil && r.constraint.Check(v)
}

// Resolve maps every attribute to its surface descriptor for one platform
// version and grant set. It is a pure function of its inputs.
func (t *Table) Resolve(platformVersion int, granted []surface.Capability) Surfaces {
	out := make(Surfaces, len(models.AllKeys()))
	v, err := semver.NewVersion(strconv.Itoa(platformVersion))
	if err != nil {
		v = nil
	}
	for _, key := range models.AllKeys() {
		out[key] = t.resolveKey(key, v, granted)
	}
	return out
}

func (t *Table) resolveKey(key models.AttributeKey, v *semver.Version, granted []surface.Capability) SurfaceDescriptor {
	for _, r := range t.rows {
		if r.Key != key || !r.matches(v) {
			continue
		}
		d := SurfaceDescriptor{
			Key:         key,
			Requirement: Requirement{Versions: r.Versions, Capability: r.Capability},
		}
		if r.Unreachable {
			d.Legibility = UnreachablePlatform
			return d
		}
		d.Kind = r.Primary.Kind
		d.Primary = r.Primary
		d.Bindings = slices.Clone(r.Bindings)
		d.Legibility = Reachable
		if r.Capability != "" && !slices.Contains(granted, r.Capability) {
			d.Legibility = DeniedCapability
		}
		return d
	}
	return SurfaceDescriptor{Key: key, Legibility: UnreachablePlatform}
}

func below(n int) string        { return fmt.Sprintf("< %d", n) }
func atLeast(n int) string      { return fmt.Sprintf(">= %d", n) }
func between(lo, hi int) string { return fmt.Sprintf(">= %d, < %d", lo, hi) }

func defaultRows(th Thresholds) []Row {
	rows := []Row{
		{Key: models.KeyBrand, Primary: surface.Field(surface.FieldBrand)},
		{Key: models.KeyModel, Primary: surface.Field(surface.FieldModel)},
		{Key: models.KeyDevice, Primary: surface.Field(surface.FieldDevice)},
		{Key: models.KeyManufacturer, Primary: surface.Field(surface.FieldManufacturer)},
		{Key: models.KeyProduct, Primary: surface.Field(surface.FieldProduct)},
		{Key: models.KeyBuildID, Primary: surface.Field(surface.FieldID)},
		{Key: models.KeyFingerprint, Primary: surface.Field(surface.FieldFingerprint)},
		{Key: models.KeyBootloader, Primary: surface.Field(surface.FieldBootloader)},
		{Key: models.KeyBoard, Primary: surface.Field(surface.FieldBoard)},
		{Key: models.KeyDisplayID, Primary: surface.Field(surface.FieldDisplay)},
	}

	s := th.Serial
	rows = append(rows,
		Row{Key: models.KeyHardwareSerial, Versions: below(s.First), Primary: surface.Field(surface.FieldSerial)},
		Row{
			Key:        models.KeyHardwareSerial,
			Versions:   between(s.First, s.Second),
			Capability: surface.CapReadPhoneState,
			Primary:    surface.Op(surface.OpGetSerial, 0),
		},
		Row{Key: models.KeyHardwareSerial, Versions: atLeast(s.Second), Unreachable: true},
	)

	tel := th.Telephony
	rows = append(rows,
		Row{
			Key:        models.KeyIMEI,
			Versions:   below(tel.First),
			Capability: surface.CapReadPhoneState,
			Primary:    surface.Op(surface.OpGetDeviceID, 0),
			Bindings: []surface.Target{
				surface.Op(surface.OpGetDeviceID, 0),
				surface.Op(surface.OpGetDeviceID, 1),
			},
		},
		Row{
			Key:        models.KeyIMEI,
			Versions:   between(tel.First, tel.Second),
			Capability: surface.CapReadPhoneState,
			Primary:    surface.Op(surface.OpGetImei, 0),
			Bindings: []surface.Target{
				surface.Op(surface.OpGetImei, 0),
				surface.Op(surface.OpGetImei, 1),
				surface.Op(surface.OpGetDeviceID, 0),
				surface.Op(surface.OpGetDeviceID, 1),
			},
		},
		Row{Key: models.KeyIMEI, Versions: atLeast(tel.Second), Unreachable: true},
		Row{Key: models.KeyPhoneNumber, Primary: surface.Op(surface.OpGetLine1Number, 0)},
		Row{Key: models.KeySimIMSI, Primary: surface.Op(surface.OpGetSubscriberID, 0)},
	)
	return rows
}
