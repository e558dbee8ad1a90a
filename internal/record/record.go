// Package record builds store-compatible glucose records from normalized
// readings, attaching provenance metadata.
package record

import (
	"time"

	"github.com/jwulff/glucosync/internal/glucose"
)

// SpecimenSource describes where the blood sample came from.
type SpecimenSource string

const (
	SpecimenCapillary SpecimenSource = "capillary"
	SpecimenVenous    SpecimenSource = "venous"
	SpecimenArterial  SpecimenSource = "arterial"
	SpecimenUnknown   SpecimenSource = "unknown"
)

// RecordingMethod describes how the measurement entered the system.
type RecordingMethod string

const (
	MethodManual    RecordingMethod = "manual"
	MethodAutomatic RecordingMethod = "automatic"
)

// DeviceDescriptor identifies the device a record was produced on.
type DeviceDescriptor struct {
	Manufacturer string
	Model        string
}

// Provenance carries the origin metadata of a record.
type Provenance struct {
	SourceID     string
	Method       RecordingMethod
	Device       DeviceDescriptor
	LastModified time.Time
}

// GlucoseRecord is a reading shaped for the external health store. The
// store assigns its own identity on successful write; until then the
// record is owned by whoever built it.
type GlucoseRecord struct {
	Value      float64 // mg/dL
	Instant    time.Time
	ZoneOffset int // seconds east of UTC at Instant
	Meal       glucose.MealRelation
	Specimen   SpecimenSource
	Provenance Provenance
}
