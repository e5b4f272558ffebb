package main

import "fmt"

// collectGeneratedColumnWarnings reports generated columns whose expression
// the source could not report; they are generated as plain columns.
func collectGeneratedColumnWarnings(schema *Schema) []string {
	if schema == nil {
		return nil
	}

	var warnings []string
	for _, t := range schema.Tables {
		for _, col := range t.Columns {
			if !col.GenerationUnknown {
				continue
			}
			kind := "virtual"
			if col.GenerationStored {
				kind = "stored"
			}
			warnings = append(warnings, fmt.Sprintf(
				"generated column %s.%s (%s) is generated as a plain column; generation expression is not available",
				t.Name, col.Name, kind,
			))
		}
	}
	return warnings
}
