package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// IntXYZ is an integer triple written as a three element YAML sequence or
// as "x,y,z" on the command line
type IntXYZ [3]int

// FloatXYZ is the floating point counterpart of IntXYZ
type FloatXYZ [3]float64

// IsZero reports whether every component is zero
func (v IntXYZ) IsZero() bool { return v == IntXYZ{} }

func (v IntXYZ) String() string {
	return fmt.Sprintf("%d,%d,%d", v[0], v[1], v[2])
}

// Set implements flag.Value
func (v *IntXYZ) Set(s string) error {
	parts, err := splitTriple(s)
	if err != nil {
		return err
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		v[i] = n
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (v *IntXYZ) UnmarshalYAML(node *yaml.Node) error {
	var vals []int
	if err := node.Decode(&vals); err != nil {
		return err
	}
	if len(vals) != 3 {
		return fmt.Errorf("line %d: expected 3 values, got %d", node.Line, len(vals))
	}
	copy(v[:], vals)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (v IntXYZ) MarshalYAML() (interface{}, error) {
	return []int{v[0], v[1], v[2]}, nil
}

func (v FloatXYZ) String() string {
	return fmt.Sprintf("%g,%g,%g", v[0], v[1], v[2])
}

// Set implements flag.Value
func (v *FloatXYZ) Set(s string) error {
	parts, err := splitTriple(s)
	if err != nil {
		return err
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		v[i] = f
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (v *FloatXYZ) UnmarshalYAML(node *yaml.Node) error {
	var vals []float64
	if err := node.Decode(&vals); err != nil {
		return err
	}
	if len(vals) != 3 {
		return fmt.Errorf("line %d: expected 3 values, got %d", node.Line, len(vals))
	}
	copy(v[:], vals)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (v FloatXYZ) MarshalYAML() (interface{}, error) {
	return []float64{v[0], v[1], v[2]}, nil
}

func splitTriple(s string) ([]string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected x,y,z, got %q", s)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}
