// Package dedup drops glucose records that duplicate measurements already
// in the store. Two records are the same measurement when their timestamps
// match at the store's time resolution and their values match at its
// precision; provenance and meal-relation differences do not prevent a
// match. This deliberately favors avoiding duplicate entries over
// preserving re-annotation.
package dedup

import (
	"math"
	"strconv"

	"github.com/jwulff/glucosync/internal/record"
)

// Defaults matching the external store's documented resolution.
const (
	DefaultResolution = 1 // seconds
	DefaultPrecision  = 1 // decimal places of mg/dL
)

// Key is the comparison identity of a stored measurement.
type Key string

// Keyer derives dedup keys at a given time resolution and value precision.
// A field at or below zero falls back to its default, so the zero value
// keys exactly like the documented store tuning.
type Keyer struct {
	ResolutionSeconds int
	Precision         int
}

// KeyOf derives the key for a record: instant truncated to the resolution,
// value rounded to the precision. Truncation is done on the UTC instant so
// that zone representation cannot split identical measurements.
func (k Keyer) KeyOf(r record.GlucoseRecord) Key {
	res := k.ResolutionSeconds
	if res <= 0 {
		res = DefaultResolution
	}
	prec := k.Precision
	if prec <= 0 {
		prec = DefaultPrecision
	}

	unix := r.Instant.Unix()
	unix -= unix % int64(res)

	scale := math.Pow10(prec)
	value := math.Round(r.Value*scale) / scale

	return Key(strconv.FormatInt(unix, 10) + "|" + strconv.FormatFloat(value, 'f', prec, 64))
}

// Filter returns the candidates whose key collides with neither the stored
// records nor an earlier candidate in the same batch. Input order is
// preserved; when two candidates share a key, the first occurrence wins.
// This must run before every write: at most one stored record per distinct
// key within a sync window.
func (k Keyer) Filter(candidates, stored []record.GlucoseRecord) []record.GlucoseRecord {
	seen := make(map[Key]struct{}, len(stored)+len(candidates))
	for _, r := range stored {
		seen[k.KeyOf(r)] = struct{}{}
	}

	kept := make([]record.GlucoseRecord, 0, len(candidates))
	for _, c := range candidates {
		key := k.KeyOf(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, c)
	}
	return kept
}
