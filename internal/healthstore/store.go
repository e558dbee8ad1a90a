// Package healthstore defines the external health-data store capability
// the engine writes to, plus an HTTP client for it and an in-memory fake
// for tests. The store is a collaborator: it owns record identity, the
// permission tiers, and the incremental change stream.
package healthstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jwulff/glucosync/internal/access"
	"github.com/jwulff/glucosync/internal/record"
)

// Token is an opaque cursor into the store's incremental change stream.
// Its contents mean nothing to the engine; it is persisted between sync
// cycles and handed back verbatim.
type Token string

// Window is a half-open time range [Start, End) over stored records.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Key identifies the logical window for single-flight bookkeeping.
func (w Window) Key() string {
	return strconv.FormatInt(w.Start.Unix(), 10) + "-" + strconv.FormatInt(w.End.Unix(), 10)
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + ".." + w.End.Format(time.RFC3339)
}

// WriteFailure names one record the store rejected and why.
type WriteFailure struct {
	Record record.GlucoseRecord
	Reason string
}

// WriteResult reports the partial outcome of a batch write.
type WriteResult struct {
	Succeeded int
	Failed    []WriteFailure
}

// ChangeResult is the outcome of one change-stream call: either a
// ChangePage to keep paging through, or ChangesDone carrying the token to
// resume from next cycle. It is a sealed two-variant result, not an
// exception-signaled one.
type ChangeResult interface {
	isChangeResult()
}

// ChangePage is one page of changes plus the cursor for the next call.
type ChangePage struct {
	Records   []record.GlucoseRecord
	NextToken Token
}

// ChangesDone signals the end of the change stream. ResumeToken is where
// the next incremental cycle picks up.
type ChangesDone struct {
	ResumeToken Token
}

func (ChangePage) isChangeResult()  {}
func (ChangesDone) isChangeResult() {}

// Store is the external health-data store capability. All calls take a
// context and must observe its deadline; implementations enforce their own
// request timeouts on top.
type Store interface {
	CheckAvailability(ctx context.Context) (bool, error)
	CheckPermissions(ctx context.Context) (access.TierSet, error)
	WriteRecords(ctx context.Context, records []record.GlucoseRecord) (*WriteResult, error)
	ReadRecords(ctx context.Context, w Window) ([]record.GlucoseRecord, error)
	ReadChanges(ctx context.Context, token Token) (ChangeResult, error)
}

// ErrTokenExpired means the continuation token is no longer valid and
// pagination must restart from the caller's baseline.
var ErrTokenExpired = errors.New("continuation token expired")

// TransientError marks a store failure eligible for bounded retry with
// backoff: timeouts, rate limits, 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
