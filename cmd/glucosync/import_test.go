package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jwulff/glucosync/internal/healthstore"
	"github.com/jwulff/glucosync/internal/record"
)

func TestBatchWindowCoversAllRecords(t *testing.T) {
	base := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	records := []record.GlucoseRecord{
		{Value: 110, Instant: base.Add(time.Hour)},
		{Value: 95, Instant: base},
		{Value: 142, Instant: base.Add(2 * time.Hour)},
	}

	w := batchWindow(records)
	assert.Equal(t, base, w.Start)
	for _, r := range records {
		assert.True(t, w.Contains(r.Instant))
	}
}

func TestBatchWindowSingleRecord(t *testing.T) {
	instant := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	w := batchWindow([]record.GlucoseRecord{{Value: 104, Instant: instant}})
	assert.True(t, w.Contains(instant))
}

func TestBatchWindowEmpty(t *testing.T) {
	w := batchWindow(nil)
	assert.Equal(t, healthstore.Window{}, w)
	assert.False(t, w.Contains(time.Now()))
}
