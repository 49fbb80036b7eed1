// Package policy implements the capability grant gate (spec §4.C6):
// a resolved allow/deny set the evaluator consults once at run start.
// Grounded on the teacher's JSON-first configuration loading (see
// core/planfmt and cli config readers), extended with a YAML loader
// using gopkg.in/yaml.v3 since the pack's policy-adjacent config
// surfaces accept either format from the host.
package policy

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Policy is the resolved grant set consumed by the evaluator.
type Policy struct {
	Version int      `json:"version" yaml:"version"`
	Allow   []string `json:"allow" yaml:"allow"`
	Deny    []string `json:"deny" yaml:"deny"`
	Limits  map[string]any `json:"limits,omitempty" yaml:"limits,omitempty"`
}

// AllKnownCapabilities enumerates every capability identifier the
// language recognizes; used by hosts to build a development override
// policy (spec §4.C6: "A development override may replace the policy
// with allow = {all known capabilities}").
var AllKnownCapabilities = []string{"fs.read", "fs.write", "http.get", "sh.exec"}

// Load parses a JSON policy document (spec §6 "Policy file").
func Load(data []byte) (*Policy, error) {
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policy: invalid JSON: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadYAML parses a YAML policy document with the same shape as Load,
// for hosts that keep their configuration in YAML alongside JSON.
func LoadYAML(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policy: invalid YAML: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) validate() error {
	if p.Version != 1 {
		return fmt.Errorf("policy: unsupported version %d (must be 1)", p.Version)
	}
	return nil
}

// DevOverride returns a Policy granting every known capability, for
// host-side development/debug modes. This is a host concern, not a
// core one; the core never constructs it implicitly.
func DevOverride() *Policy {
	return &Policy{Version: 1, Allow: append([]string{}, AllKnownCapabilities...)}
}

// Granted reports whether capability is allowed and not denied.
func (p *Policy) Granted(capability string) bool {
	return contains(p.Allow, capability) && !contains(p.Deny, capability)
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
