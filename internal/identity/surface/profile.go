package surface

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes the genuine identity of a host. It is loaded from YAML:
//
//	platform:
//	  version: 28
//	capabilities: [READ_PHONE_STATE]
//	fields:
//	  BRAND: google
//	operations:
//	  getImei: ["356938035643809", "356938035643817"]
//	hardened: [FINGERPRINT]
type Profile struct {
	Platform     Platform            `yaml:"platform"`
	Capabilities []Capability        `yaml:"capabilities"`
	Fields       map[string]string   `yaml:"fields"`
	Operations   map[string][]string `yaml:"operations"`
	Hardened     []string            `yaml:"hardened"`
}

type Platform struct {
	Version int    `yaml:"version"`
	Release string `yaml:"release"`
}

// ParseProfile decodes a YAML profile. Unknown keys are rejected.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decode host profile: %w", err)
	}
	if p.Platform.Version <= 0 {
		return Profile{}, fmt.Errorf("host profile: platform.version must be positive, got %d", p.Platform.Version)
	}
	return p, nil
}

// LoadProfile reads and decodes a YAML profile from path.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read host profile: %w", err)
	}
	return ParseProfile(data)
}
