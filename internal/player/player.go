// Package player talks to the external music-player daemon. The assistant
// never touches the library directly; it issues five commands over a
// websocket bus and reads back a success flag plus a human-readable message
// that is fed to the language model as the tool result.
package player

import "context"

// Controls is the closed command set the tool catalogue exposes.
type Controls interface {
	// Authorized reports whether the player accepted us; the tool catalogue
	// is only attached to chat requests when it did.
	Authorized() bool

	SearchAndPlay(ctx context.Context, query string) (bool, string)
	Play(ctx context.Context) (bool, string)
	Pause(ctx context.Context) (bool, string)
	Next(ctx context.Context) (bool, string)
	Previous(ctx context.Context) (bool, string)
}

// Unavailable is the stand-in when no player daemon is configured or the
// bus could not connect. Tool calls cannot happen against it because
// Authorized is false, but it keeps callers nil-safe.
type Unavailable struct{}

func (Unavailable) Authorized() bool { return false }

func (Unavailable) SearchAndPlay(context.Context, string) (bool, string) {
	return false, "music player is not connected"
}
func (Unavailable) Play(context.Context) (bool, string) {
	return false, "music player is not connected"
}
func (Unavailable) Pause(context.Context) (bool, string) {
	return false, "music player is not connected"
}
func (Unavailable) Next(context.Context) (bool, string) {
	return false, "music player is not connected"
}
func (Unavailable) Previous(context.Context) (bool, string) {
	return false, "music player is not connected"
}
