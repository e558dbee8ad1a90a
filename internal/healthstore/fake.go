package healthstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jwulff/glucosync/internal/access"
	"github.com/jwulff/glucosync/internal/record"
)

// Fake is an in-memory Store for tests: configurable availability and
// tiers, a scripted change stream with expirable tokens, injectable write
// failures, and per-method call counts for asserting that gated operations
// never touch the store.
type Fake struct {
	mu sync.Mutex

	available bool
	tiers     access.TierSet
	records   []record.GlucoseRecord

	pages       [][]record.GlucoseRecord
	resumeToken Token
	expired     map[Token]bool

	transientWrites  int
	transientReads   int
	transientChanges int
	rejectReasons    map[float64]string
	calls            map[string]int
}

// NewFake returns a fake store that is available with every tier granted.
func NewFake() *Fake {
	return &Fake{
		available:     true,
		tiers:         access.NewTierSet(access.TierHistorical),
		expired:       map[Token]bool{},
		rejectReasons: map[float64]string{},
		calls:         map[string]int{},
	}
}

// SetAvailable toggles store availability.
func (f *Fake) SetAvailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = v
}

// SetTiers replaces the granted tier set.
func (f *Fake) SetTiers(t access.TierSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tiers = t
}

// Seed adds records to the stored set without going through WriteRecords.
func (f *Fake) Seed(records ...record.GlucoseRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, records...)
}

// Stored returns a copy of everything written to the store.
func (f *Fake) Stored() []record.GlucoseRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]record.GlucoseRecord, len(f.records))
	copy(out, f.records)
	return out
}

// SetChangePages scripts the change stream. An empty token reads page 0;
// each page hands out the token for the next; past the last page the
// stream reports done with the given resume token.
func (f *Fake) SetChangePages(pages [][]record.GlucoseRecord, resume Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = pages
	f.resumeToken = resume
}

// ExpireToken makes ReadChanges fail with ErrTokenExpired for the token.
func (f *Fake) ExpireToken(t Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired[t] = true
}

// FailNextWrites makes the next n WriteRecords calls fail transiently.
func (f *Fake) FailNextWrites(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transientWrites = n
}

// FailNextReads makes the next n ReadRecords calls fail transiently.
func (f *Fake) FailNextReads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transientReads = n
}

// FailNextChanges makes the next n ReadChanges calls fail transiently.
func (f *Fake) FailNextChanges(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transientChanges = n
}

// RejectValue makes writes of records with the given value fail
// individually with the reason, without failing the batch.
func (f *Fake) RejectValue(value float64, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectReasons[value] = reason
}

// Calls returns how many times the named method ran.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) CheckAvailability(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CheckAvailability"]++
	return f.available, nil
}

func (f *Fake) CheckPermissions(ctx context.Context) (access.TierSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CheckPermissions"]++
	return f.tiers, nil
}

func (f *Fake) WriteRecords(ctx context.Context, records []record.GlucoseRecord) (*WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["WriteRecords"]++

	if f.transientWrites > 0 {
		f.transientWrites--
		return nil, &TransientError{Err: fmt.Errorf("injected store failure")}
	}

	result := &WriteResult{}
	for _, r := range records {
		if reason, reject := f.rejectReasons[r.Value]; reject {
			result.Failed = append(result.Failed, WriteFailure{Record: r, Reason: reason})
			continue
		}
		f.records = append(f.records, r)
		result.Succeeded++
	}
	return result, nil
}

func (f *Fake) ReadRecords(ctx context.Context, w Window) ([]record.GlucoseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ReadRecords"]++

	if f.transientReads > 0 {
		f.transientReads--
		return nil, &TransientError{Err: fmt.Errorf("injected store failure")}
	}

	var out []record.GlucoseRecord
	for _, r := range f.records {
		if w.Contains(r.Instant) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *Fake) ReadChanges(ctx context.Context, token Token) (ChangeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ReadChanges"]++

	if f.transientChanges > 0 {
		f.transientChanges--
		return nil, &TransientError{Err: fmt.Errorf("injected store failure")}
	}

	if f.expired[token] {
		return nil, ErrTokenExpired
	}

	idx := 0
	if token != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(string(token), "cursor-"))
		if err != nil {
			return nil, ErrTokenExpired
		}
		idx = n
	}

	if idx >= len(f.pages) {
		resume := f.resumeToken
		if resume == "" {
			resume = Token("cursor-" + strconv.Itoa(len(f.pages)))
		}
		return ChangesDone{ResumeToken: resume}, nil
	}

	return ChangePage{
		Records:   f.pages[idx],
		NextToken: Token("cursor-" + strconv.Itoa(idx+1)),
	}, nil
}
