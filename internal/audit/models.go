package audit

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind labels the class of audit event.
type Kind string

const (
	KindVerificationAttempt Kind = "verification_attempt"
	KindVerificationSuccess Kind = "verification_success"
	KindPrincipalCreated    Kind = "principal_created"
	KindPrincipalUpdated    Kind = "principal_updated"
	KindNamespaceRepaired   Kind = "namespace_repaired"
	KindAccessDenied        Kind = "access_denied"
	KindCodeIssued          Kind = "code_issued"
	KindCodeDisabled        Kind = "code_disabled"
	KindQueryAnswered       Kind = "query_answered"
	KindQueryDeferred       Kind = "query_deferred"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. IDs are ULIDs so the
// append-only log sorts by creation time.
type Event struct {
	ID          string
	Kind        Kind
	ExternalID  string
	PrincipalID string
	Result      string
	Reason      string
	Detail      map[string]string
	Timestamp   time.Time
}

// NewEventID returns a time-ordered event id.
func NewEventID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), rand.Reader).String()
}
