// Package api implements the HTTP API and WebSocket server of the voice
// bridge.
//
// This package provides:
//   - Command endpoints that switch devices, position blinds and run scenes
//     by spoken name (POST /api/v1/device/power, /blind/set, /scene/run)
//   - A read-only resolver for checking what a phrase would control
//   - The raw state document, device history, the audit log and system metrics
//   - A WebSocket hub broadcasting device.state_changed and scene.run events
//
// The command routes are also mounted at the root for voice-assistant
// clients that post without the /api/v1 prefix.
//
// # Security
//
// When security.jwt.secret is set every route except health requires an
// HS256 bearer token. Browsers that cannot set headers on a WebSocket
// upgrade may pass the token as the token query parameter instead.
//
// # Ambiguity
//
// A blind request that matches more than one blind is answered with 409
// and the candidates, so the assistant can ask which one was meant:
//
//	{"status":409,"code":"ambiguous","message":"more blinds in the room",
//	 "requested_value":40,"options":[{"room":"cucina","name":"tapparella cucina sud"}]}
package api
