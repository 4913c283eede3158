// Package auth implements the policy-driven session lifecycle behind a
// token-based authentication service: access/refresh token issuance and
// rotation, a per-user session registry with cardinality enforcement, and
// a closed error taxonomy with severity/threat classification.
//
// Policy:
//   - PolicyConfig is an explicit, validated value. Construct it once via
//     LoadPolicyConfig (env overrides layered over defaults) and inject it
//     into each component. Invalid policy is fatal; nothing in this package
//     falls back to a partially valid configuration.
//
// Token lifecycle:
//   - TokenIssuer mints a short-lived JWT access token bound to a session
//     plus an opaque single-use refresh token. When rotation is enabled,
//     every refresh consumes the presented token and issues a successor in
//     the same chain. Redeeming an already-consumed token is treated as
//     theft: the session and every live token in its chain are revoked.
//
// Session registry:
//   - Sessions tracks active sessions per user and enforces maxPerUser via
//     reject-or-prune. The count-check-evict-create sequence is serialized
//     per user so concurrent logins cannot overshoot the limit.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by Auther and the
//     token issuer for login, session, and security-alert events. Sink
//     errors are logged, never propagated, so auditing cannot block
//     authentication.
package auth
