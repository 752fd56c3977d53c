package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// VarType is the declared type of a template variable.
type VarType string

const (
	TypeString  VarType = "string"
	TypeText    VarType = "text"
	TypeNumber  VarType = "number"
	TypeBoolean VarType = "boolean"
	TypeEnum    VarType = "enum"
)

// Valid reports whether t is a known variable type.
func (t VarType) Valid() bool {
	switch t {
	case TypeString, TypeText, TypeNumber, TypeBoolean, TypeEnum:
		return true
	}
	return false
}

// Variable is the metadata attached to one placeholder path.
type Variable struct {
	Name        string   `json:"name" yaml:"name"`
	Type        VarType  `json:"type" yaml:"type"`
	Required    bool     `json:"required" yaml:"required"`
	Default     string   `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Options     []string `json:"options,omitempty" yaml:"options,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// UnmarshalJSON accepts scalar defaults of any JSON type and stores their
// canonical text form.
func (v *Variable) UnmarshalJSON(data []byte) error {
	type plain Variable
	var aux struct {
		plain
		Default json.RawMessage `json:"default_value,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	*v = Variable(aux.plain)
	v.Default = ""
	if len(aux.Default) == 0 {
		return nil
	}
	value, err := ParseValue(aux.Default)
	if err != nil {
		return fmt.Errorf("variable %q default: %w", v.Name, err)
	}
	switch value.Kind() {
	case KindObject, KindArray:
		return fmt.Errorf("variable %q default must be a scalar", v.Name)
	}
	v.Default = value.Text()
	return nil
}

// Reconcile returns metadata for exactly the paths in body, in order of first
// appearance. Declared metadata wins; undeclared paths are inferred. Names of
// declared variables that body does not reference are returned separately.
func Reconcile(body string, declared []Variable) ([]Variable, []string, error) {
	byName := make(map[string]Variable, len(declared))
	for _, v := range declared {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("variable name is required")
		}
		if v.Type != "" && !v.Type.Valid() {
			return nil, nil, fmt.Errorf("variable %q has unknown type %q", name, v.Type)
		}
		if v.Type == TypeEnum && len(v.Options) == 0 {
			return nil, nil, fmt.Errorf("enum variable %q needs options", name)
		}
		v.Name = name
		byName[name] = v
	}

	paths := Paths(body)
	out := make([]Variable, 0, len(paths))
	referenced := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		referenced[path] = struct{}{}
		v, ok := byName[path]
		if !ok {
			out = append(out, Infer(path))
			continue
		}
		if v.Type == "" {
			inferred := Infer(path)
			v.Type = inferred.Type
			if len(v.Options) == 0 {
				v.Options = inferred.Options
			}
		}
		out = append(out, v)
	}

	var unreferenced []string
	for _, v := range declared {
		name := strings.TrimSpace(v.Name)
		if _, ok := referenced[name]; !ok {
			unreferenced = append(unreferenced, name)
		}
	}
	return out, unreferenced, nil
}
