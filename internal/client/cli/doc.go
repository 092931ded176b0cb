// Package cli provides the interactive SoulTalk account client.
//
// It restores the stored session, watches server reachability in the
// background and runs a small REPL over the auth API: register, verify,
// login, profile, password and session management.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
