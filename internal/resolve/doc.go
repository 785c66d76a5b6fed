// Package resolve turns free-form device names, as typed or spoken, into
// devices of a catalog, and decides when a request is too vague to act on.
//
// # Architecture
//
//	raw phrase
//	    │
//	    ▼
//	┌────────────┐   ┌──────────────┐   ┌────────────┐   ┌─────────────┐
//	│ Normalize  │──▶│ Canonicalize │──▶│ Candidates │──▶│ ScoreMatch  │
//	│ (lowercase,│   │ (alias table)│   │ (3 per     │   │ (word-set   │
//	│ whitespace)│   │              │   │  device)   │   │  overlap)   │
//	└────────────┘   └──────────────┘   └────────────┘   └─────────────┘
//	                                                            │
//	                          ┌─────────────────────────────────┤
//	                          ▼                                 ▼
//	                  ┌──────────────┐                  ┌──────────────┐
//	                  │   Resolver   │                  │   Category   │
//	                  │ FindDevice   │                  │ (generic     │
//	                  │ FindDevices  │                  │  room query) │
//	                  └──────────────┘                  └──────────────┘
//
// # Matching Rules
//
// Every device is reachable through three candidate phrases: its display
// name, its code name, and "room display-name". FindDevice prefers an exact
// candidate match and otherwise accepts the best word overlap of at least
// MinScore. FindDevices returns every device whose candidates contain the
// query as a substring or overlap it by at least MinScore words.
//
// Ties are broken by catalog order, never by score.
//
// A Category recognises "<category word> <room>" requests, such as
// "tapparella cucina", that name a kind of device and a room but no
// instance. Callers check it before FindDevices and, when the room holds
// more than one member, ask the user to choose.
//
// # Thread Safety
//
// Everything here is a pure function of its arguments. An Engine is
// immutable after construction and may be shared between goroutines; the
// catalog snapshots passed in must not be mutated concurrently.
package resolve
