package catalog

import "errors"

// Domain errors for the catalog package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, catalog.ErrStateNotFound) {
//	    // no state document on disk yet
//	}
var (
	// ErrStateNotFound is returned when the state document does not exist.
	ErrStateNotFound = errors.New("catalog: state document not found")

	// ErrInvalidDocument is returned when a document is not valid JSON
	// or its top level is not an object.
	ErrInvalidDocument = errors.New("catalog: invalid document")

	// ErrNoChange can be returned by an Update callback to abort the cycle
	// without saving and without reporting an error.
	ErrNoChange = errors.New("catalog: no change")

	// errNotObject is returned by the ordered decoder for non-object JSON.
	errNotObject = errors.New("catalog: not a JSON object")
)
