package catalog

import (
	"encoding/json"
	"fmt"
)

// AliasEntry maps one canonical phrase to the phrases users say instead.
type AliasEntry struct {
	Canonical string
	Synonyms  []string
}

// AliasTable is the synonym table in document order.
// Declaration order decides the winner when a phrase appears under more
// than one canonical key.
type AliasTable []AliasEntry

// DecodeAliases parses an alias document: an object from canonical phrase
// to a list of synonyms. An entry whose value is not a list keeps its
// canonical phrase with no synonyms; non-string synonyms are skipped.
func DecodeAliases(raw []byte) (AliasTable, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	table := make(AliasTable, 0, len(obj.keys))
	for _, canonical := range obj.keys {
		entry := AliasEntry{Canonical: canonical}
		items, _ := decodeList(obj.values[canonical])
		for _, item := range items {
			var s string
			if json.Unmarshal(item, &s) != nil {
				continue
			}
			entry.Synonyms = append(entry.Synonyms, s)
		}
		table = append(table, entry)
	}
	return table, nil
}
