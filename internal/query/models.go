// Package query answers knowledge questions within a principal's allowed
// namespaces. Retrieval and completion are ports; the service owns namespace
// restriction, the answer deadline and the durable query log.
package query

import (
	"context"
	"time"
)

// Document is one retrieved knowledge fragment.
type Document struct {
	ID        string
	Namespace string
	Title     string
	Content   string
	Score     float64
}

// Retriever searches the knowledge store. Implementations MUST restrict
// results to the given namespaces; the service never post-filters.
type Retriever interface {
	Search(ctx context.Context, question string, namespaces []string, topK int) ([]Document, error)
}

// Completer turns a question and its supporting documents into an answer.
type Completer interface {
	Complete(ctx context.Context, question string, docs []Document) (string, error)
}

// Record status values.
const (
	StatusAnswered = "answered"
	StatusDeferred = "deferred"
	StatusFailed   = "failed"
)

// Record is one logged query. The log doubles as the quota counter: a row is
// appended for every attempt that consumed budget.
type Record struct {
	ID          string
	PrincipalID string
	ExternalID  string
	Question    string
	Namespaces  []string
	Answer      string
	Status      string
	LatencyMS   int64
	CreatedAt   time.Time
}

// Request is one question from an authorized principal.
type Request struct {
	PrincipalID string
	ExternalID  string
	Question    string
	Namespaces  []string
	// PrivateNamespace, when set, is the principal's own partition reachable
	// through the "/" prefix.
	PrivateNamespace string
}

// Result is the outcome of answering.
type Result struct {
	Text       string
	Deferred   bool
	Namespaces []string
	Sources    []Document
}
