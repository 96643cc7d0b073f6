// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Definition is the declarative description of the desired objects.
type Definition struct {
	Objects []map[string]any `json:"objects" yaml:"objects"`
}

// LoadDefinitionFile reads a definition from a JSON file, or from a YAML
// file when the file name says so.
func LoadDefinitionFile(path string) (Definition, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buf, &def)
	default:
		err = json.Unmarshal(buf, &def)
	}
	if err != nil {
		return Definition{}, fmt.Errorf("cannot parse definition %s: %w", path, err)
	}
	return def, nil
}

// ApplyDefinition registers all objects of a definition. The objects are
// registered in declaration order, so dependencies must be declared before
// their dependants.
func (s *Setup) ApplyDefinition(def Definition) error {
	for idx, raw := range def.Objects {
		typeName, _ := raw["type"].(string)
		if typeName == "" {
			return fmt.Errorf("object #%d does not declare a type", idx+1)
		}
		attrs := make(map[string]any, len(raw))
		for key, value := range raw {
			if key != "type" {
				attrs[key] = value
			}
		}
		err := s.registerFromDefinition(typeName, attrs)
		if err != nil {
			return fmt.Errorf("cannot register object #%d (%s): %w", idx+1, typeName, err)
		}
	}
	return nil
}

func (s *Setup) registerFromDefinition(typeName string, attrs map[string]any) error {
	switch typeName {
	case "Group":
		var spec GroupSpec
		err := decodeSpec(attrs, &spec)
		if err != nil {
			return err
		}
		_, err = s.Group(spec)
		return err
	case "User":
		var spec UserSpec
		err := decodeSpec(attrs, &spec)
		if err != nil {
			return err
		}
		_, err = s.User(spec)
		return err
	case "Database":
		var spec DatabaseSpec
		err := decodeSpec(attrs, &spec)
		if err != nil {
			return err
		}
		_, err = s.Database(spec)
		return err
	case "Schema":
		var spec SchemaSpec
		err := decodeSpec(attrs, &spec)
		if err != nil {
			return err
		}
		_, err = s.Schema(spec)
		return err
	case "DatabasePrivilege":
		var spec DatabasePrivilegeSpec
		err := decodeSpec(attrs, &spec)
		if err != nil {
			return err
		}
		_, err = s.DatabasePrivilege(spec)
		return err
	case "SchemaPrivilege":
		var spec SchemaPrivilegeSpec
		err := decodeSpec(attrs, &spec)
		if err != nil {
			return err
		}
		_, err = s.SchemaPrivilege(spec)
		return err
	case "SchemaTablesPrivilege":
		var spec SchemaTablesPrivilegeSpec
		err := decodeSpec(attrs, &spec)
		if err != nil {
			return err
		}
		_, err = s.SchemaTablesPrivilege(spec)
		return err
	case "DefaultPrivilege":
		var spec DefaultPrivilegeSpec
		err := decodeSpec(attrs, &spec)
		if err != nil {
			return err
		}
		_, err = s.DefaultPrivilege(spec)
		return err
	default:
		return fmt.Errorf("unknown object type %q", typeName)
	}
}

// decodeSpec maps the attributes of one definition entry onto a spec
// struct. Unknown attributes are an error.
func decodeSpec(attrs map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(attrs)
}
