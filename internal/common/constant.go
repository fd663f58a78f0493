// Package common contains shared constants and sentinel errors used across
// client and server components.
package common

// RecordKinds lists the record collections the sync API serves, in the fixed
// order sync cycles process them. The client's typed kinds and the server's
// routing table both derive from this list.
var RecordKinds = []string{"hero", "story", "feedback"}

// AuthHeaderName is the HTTP header carrying the bearer access token on
// outbound requests.
const AuthHeaderName = "Authorization"

// IdempotencyKeyHeaderName carries the client-generated deterministic key on
// create requests, so a retried create never produces a second server record.
const IdempotencyKeyHeaderName = "Idempotency-Key"

// PreconditionHeaderName carries the client's last observed server update
// timestamp (RFC3339Nano) on update requests. A stale value is rejected with
// HTTP 412 and the server's current record in the response body.
const PreconditionHeaderName = "X-Precondition"
