/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

// validateJSON checks a JSON config document against the embedded
// schema. Type violations are errors; unrecognized keys come back as
// warnings so forward-compatible configs keep working.
func validateJSON(data []byte) ([]string, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}

	var warnings []string
	var hard []string
	for _, violation := range result.Errors() {
		if violation.Type() == "additional_property_not_allowed" {
			warnings = append(warnings, fmt.Sprintf("%s: %v, ignored", violation.Field(), ErrUnknownOption))
			continue
		}
		hard = append(hard, violation.String())
	}
	if len(hard) > 0 {
		return warnings, fmt.Errorf("schema violations: %s", strings.Join(hard, "; "))
	}
	return warnings, nil
}
