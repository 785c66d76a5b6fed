// Package catalog models the room→device catalog and the alias table that
// the voice bridge resolves spoken device names against.
//
// Both live in JSON documents owned by the field installation, not by the
// bridge: the state document (rooms, devices, scenes) and the alias
// document (canonical phrase → synonyms). The bridge reads them on every
// request and writes the state document back after a change.
//
// # Ordering
//
// Room order and device order are part of the contract: the resolver breaks
// ties by catalog order. The documents are therefore decoded with an
// order-preserving JSON decoder into slices; Go maps never hold rooms or
// alias keys.
//
// # Malformed Entries
//
// The state document is shared with other writers and may be partially
// wrong. A room whose value is not a list has no devices; a device record
// that is not an object, or whose known fields have the wrong JSON type, is
// skipped. Skipped entries are kept verbatim and written back on save, so a
// round trip never destroys data the bridge does not understand.
//
// # Usage
//
//	store := catalog.NewStore(catalog.StoreConfig{
//	    StatePath:   "data/state_clean.json",
//	    AliasesPath: "data/aliases.json",
//	})
//	err := store.Update(ctx, func(doc *catalog.Document, aliases catalog.AliasTable) error {
//	    // resolve, mutate doc.Catalog ...
//	    return nil
//	})
//
// # Thread Safety
//
// Documents are plain values and are not safe for concurrent mutation.
// Store serialises every load→mutate→save cycle behind one mutex.
package catalog
