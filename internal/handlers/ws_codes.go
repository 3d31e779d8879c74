// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the match room socket. These provide more specific reasons
// for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	NotParticipantError   = 3002 // Caller is not one of the match participants.
	MatchNotFoundError    = 3003 // Match code in the WS URL does not exist.
	SlowConsumerError     = 3004 // Subscriber fell behind and was dropped; reconnect and resync.
)
