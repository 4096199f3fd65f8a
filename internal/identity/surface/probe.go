package surface

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDMIRoot is where Linux exposes firmware identity.
const DefaultDMIRoot = "/sys/class/dmi/id"

// dmiFields maps DMI attribute files onto build fields.
var dmiFields = []struct {
	file  string
	field string
}{
	{"sys_vendor", FieldManufacturer},
	{"sys_vendor", FieldBrand},
	{"product_name", FieldModel},
	{"product_family", FieldProduct},
	{"board_name", FieldBoard},
	{"bios_version", FieldBootloader},
	{"product_serial", FieldSerial},
}

// FillFromDMI copies DMI values into fields the profile leaves empty. Files
// that are missing or unreadable (product_serial needs root) are skipped.
// The serial is also exposed through getSerial when the profile has none.
func FillFromDMI(p Profile, root string) Profile {
	if root == "" {
		root = DefaultDMIRoot
	}
	fields := make(map[string]string, len(p.Fields)+len(dmiFields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	for _, m := range dmiFields {
		if fields[m.field] != "" {
			continue
		}
		if v := readDMI(root, m.file); v != "" {
			fields[m.field] = v
		}
	}
	p.Fields = fields

	if serial := fields[FieldSerial]; serial != "" && len(p.Operations[OpGetSerial]) == 0 {
		ops := make(map[string][]string, len(p.Operations)+1)
		for k, v := range p.Operations {
			ops[k] = v
		}
		ops[OpGetSerial] = []string{serial}
		p.Operations = ops
	}
	return p
}

func readDMI(root, name string) string {
	data, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
