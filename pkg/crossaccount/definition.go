package crossaccount

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// AccountDefinition is one entry of an account definition file.
type AccountDefinition struct {
	Email        string `yaml:"email"`
	AccountGroup string `yaml:"accountgroup"`
}

// RoleDefinition is one entry of a role definition file.
type RoleDefinition struct {
	Action       string `yaml:"action"`
	Policy       string `yaml:"policy"`
	AccountGroup string `yaml:"accountgroup"`
}

// Definition is a parsed definition file: an accounts map keyed by account
// ID, or a roles map keyed by role-name suffix. The YAML shape is a
// sequence of single-key maps; entries are merged across the sequence and
// map keys are read as scalars, so unquoted numeric account IDs work.
type Definition struct {
	Accounts map[string]AccountDefinition
	Roles    map[string]RoleDefinition
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Definition) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Accounts []yaml.Node `yaml:"accounts"`
		Roles    []yaml.Node `yaml:"roles"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	d.Accounts = map[string]AccountDefinition{}
	for _, entry := range raw.Accounts {
		if err := decodeEntries(&entry, d.Accounts); err != nil {
			return fmt.Errorf("accounts: %w", err)
		}
	}

	d.Roles = map[string]RoleDefinition{}
	for _, entry := range raw.Roles {
		if err := decodeEntries(&entry, d.Roles); err != nil {
			return fmt.Errorf("roles: %w", err)
		}
	}
	return nil
}

// decodeEntries decodes one sequence element (a mapping of key to entry)
// into out, keyed by the scalar value of each key node.
func decodeEntries[T any](node *yaml.Node, out map[string]T) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("entry must be a mapping, got %v", node.Kind)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var value T
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("entry %q: %w", key, err)
		}
		out[key] = value
	}
	return nil
}

// ParseDefinition parses a definition file body.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, ErrValidation("malformed definition file").WithCause(err)
	}
	return &d, nil
}

// group returns the entry's group, defaulting to the ungrouped partition.
func group(g string) string {
	if g == "" {
		return DefaultGroup
	}
	return g
}
