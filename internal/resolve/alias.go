package resolve

import "github.com/nerrad567/gray-logic-bridge/internal/catalog"

// Canonicalize maps a phrase to its canonical form using the alias table.
//
// A phrase equal to a canonical key returns that key, even when another
// entry lists it as a synonym. Otherwise the first entry, in table order,
// with a matching synonym wins. Unknown phrases pass through. The result
// is always normalized.
func Canonicalize(phrase string, aliases catalog.AliasTable) string {
	target := Normalize(phrase)

	for _, entry := range aliases {
		if canonical := Normalize(entry.Canonical); canonical == target {
			return canonical
		}
	}

	for _, entry := range aliases {
		for _, syn := range entry.Synonyms {
			if Normalize(syn) == target {
				return Normalize(entry.Canonical)
			}
		}
	}

	return target
}
