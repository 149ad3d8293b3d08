// Package gotrue implements the access.AuthClient and
// access.SessionValidator contracts against a GoTrue-compatible auth
// backend (Supabase Auth and friends).
//
// The client keeps the current session in memory and notifies
// OnAuthStateChange subscribers synchronously, so an access.StateStore
// wired to it observes sign-in and sign-out as they happen.
package gotrue
