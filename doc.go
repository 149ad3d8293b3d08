// Package access coordinates authentication, session security, plan gating
// and impersonation for the Agrovia farm-management platform. The heavy
// lifting (credential verification, token issuance, user records) lives in a
// managed auth backend; this package owns the bookkeeping around it.
//
// Session state:
//   - StateStore mirrors the backend's auth state. It registers a state-change
//     listener and independently probes the current session; both paths write
//     the same idempotent snapshot, so callers never care which one wins.
//   - Coordinator watches inactivity against warning/timeout thresholds and
//     invokes an injected handler exactly once per idle period. Rate-limit
//     bookkeeping for login attempts hangs off the same SecurityState.
//
// Plan gating:
//   - PlanChecker derives an allow/redirect/block decision from role, profile
//     and subscription records. Elevated roles short-circuit every other
//     lookup; lookup failures block (never fail open).
//
// Impersonation:
//   - ImpersonationContext layers an acting-as identity over a valid real
//     session without re-authenticating. Resolver reports the effective user
//     every data query must use. The context stores the override, it does not
//     authorize it; the HTTP layer gates on elevated roles and audit-logs
//     through the ActivitySink.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Actions, the
//     Coordinator and the impersonation context. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
package access
