// Package session tracks live client connections using the actor pattern.
//
// Registry is a single goroutine that owns the key -> Handle map. Every operation
// (Connect, Swap, Disconnect, Release, Send) is a command sent over a buffered channel
// and answered on a per-request reply channel, so the map is never shared and needs
// no locks. Many goroutines may issue commands at once; they are applied one at a time
// in arrival order.
//
// Connection is the per-socket actor: it registers under an anonymous random key,
// keeps the socket alive with pings, promotes itself to the authenticated user's key
// on "/login <token>", and writes whatever the Registry delivers to it as text frames
// from a dedicated writer goroutine.
package session
