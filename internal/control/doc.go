// Package control executes voice commands against the device catalog.
//
// A command resolves a spoken name to one device, checks that the device
// accepts the requested value, writes the state document, and then
// announces the change:
//
//	HTTP handler ──▶ Service.SetBlind ──▶ Store.Update ──▶ Engine (resolve)
//	                                          │
//	                                          ▼ saved
//	       MQTT command + state, InfluxDB point, audit entry,
//	       WebSocket event, controller set_state
//
// Announcements are best effort: a failing publisher is logged and never
// undoes a saved change. Every dependency except Store and Engine is
// optional.
//
// The same announcement path serves state reported by the field
// (ApplyExternalState), minus the command publish and the controller
// forward, which would echo the report back.
package control
