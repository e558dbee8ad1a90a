package record

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/jwulff/glucosync/internal/glucose"
)

// DeviceInfo resolves the descriptor of the device the engine runs on.
// Implementations query the platform; tests inject fixed descriptors.
type DeviceInfo interface {
	Descriptor() DeviceDescriptor
}

// HostDeviceInfo resolves the descriptor from the running host.
type HostDeviceInfo struct{}

func (HostDeviceInfo) Descriptor() DeviceDescriptor {
	model := runtime.GOOS + "/" + runtime.GOARCH
	if host, err := os.Hostname(); err == nil {
		model = host + " (" + model + ")"
	}
	return DeviceDescriptor{
		Manufacturer: "glucosync",
		Model:        model,
	}
}

// Builder converts readings into store records. Builders are stateless and
// safe for concurrent use.
type Builder struct {
	sourceID string
	device   DeviceInfo
}

// NewBuilder creates a builder stamping records with the given source ID.
// A nil device falls back to the host descriptor.
func NewBuilder(sourceID string, device DeviceInfo) *Builder {
	if device == nil {
		device = HostDeviceInfo{}
	}
	return &Builder{sourceID: sourceID, device: device}
}

// Option overrides a field on the record being built.
type Option func(*GlucoseRecord)

// WithMeal overrides the meal relation carried by the reading.
func WithMeal(m glucose.MealRelation) Option {
	return func(r *GlucoseRecord) { r.Meal = m }
}

// WithSpecimen sets the specimen source, which readings do not carry.
func WithSpecimen(s SpecimenSource) Option {
	return func(r *GlucoseRecord) { r.Specimen = s }
}

// Build converts one reading into a record. Readings with non-positive
// values or missing timestamps are rejected here, before any store call.
// The zone offset is resolved from the system zone rules at the reading's
// instant on every call: the same wall instant maps to different offsets
// across DST boundaries, so this is never cached.
func (b *Builder) Build(r glucose.Reading, opts ...Option) (GlucoseRecord, error) {
	if err := r.Validate(); err != nil {
		return GlucoseRecord{}, fmt.Errorf("invalid reading: %w", err)
	}

	_, offset := r.Timestamp.Zone()

	rec := GlucoseRecord{
		Value:      r.Value,
		Instant:    r.Timestamp,
		ZoneOffset: offset,
		Meal:       r.Meal,
		Specimen:   SpecimenUnknown,
		Provenance: Provenance{
			SourceID:     b.sourceID,
			Method:       MethodManual,
			Device:       b.device.Descriptor(),
			LastModified: time.Now(),
		},
	}
	for _, opt := range opts {
		opt(&rec)
	}
	return rec, nil
}

// BuildAll converts a batch of readings. The first invalid reading aborts
// the batch; validation happens at this boundary so that nothing invalid
// reaches the dedup filter or the store.
func (b *Builder) BuildAll(readings []glucose.Reading, opts ...Option) ([]GlucoseRecord, error) {
	records := make([]GlucoseRecord, 0, len(readings))
	for i, r := range readings {
		rec, err := b.Build(r, opts...)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
