// Package moisture samples the soil moisture probe and buckets the reading.
package moisture

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/shadow-agent/internal/infrastructure/config"
	"github.com/nerrad567/shadow-agent/internal/shadow"
)

// Driver names.
const (
	DriverSim = "sim"
	DriverIIO = "iio"
)

// ErrRead wraps failures reading the probe.
var ErrRead = errors.New("moisture: read failed")

// Reader returns one raw ADC reading.
type Reader interface {
	ReadRaw(ctx context.Context) (int, error)
}

// Sensor converts raw readings to percent and humidity range using the
// dry/wet calibration pair.
type Sensor struct {
	reader   Reader
	dryValue int
	wetValue int
}

// New builds a Sensor for the configured driver.
func New(cfg config.SensorConfig) (*Sensor, error) {
	var reader Reader
	switch cfg.Driver {
	case DriverSim:
		reader = NewSimReader(cfg.DryValue, cfg.WetValue, rand.Uint64())
	case DriverIIO:
		reader = IIOReader{Path: cfg.Path}
	default:
		return nil, fmt.Errorf("moisture: unknown driver %q", cfg.Driver)
	}
	return NewSensor(reader, cfg.DryValue, cfg.WetValue), nil
}

// NewSensor wraps reader with a calibration pair.
func NewSensor(reader Reader, dryValue, wetValue int) *Sensor {
	return &Sensor{reader: reader, dryValue: dryValue, wetValue: wetValue}
}

// Sample reads the probe once.
func (s *Sensor) Sample(ctx context.Context) (shadow.SensorSnapshot, error) {
	raw, err := s.reader.ReadRaw(ctx)
	if err != nil {
		return shadow.SensorSnapshot{}, err
	}
	percent := Percent(raw, s.dryValue, s.wetValue)
	return shadow.SensorSnapshot{
		Raw:     raw,
		Percent: percent,
		Range:   shadow.RangeFromPercent(percent),
	}, nil
}

// Percent maps raw linearly from [dry, wet] onto [0, 100] with integer
// truncation, then clamps. Capacitive probes read lower when wetter, so
// dry is usually the larger value.
func Percent(raw, dry, wet int) int {
	if dry == wet {
		return 0
	}
	p := (raw - dry) * 100 / (wet - dry)
	return min(max(p, 0), 100)
}

// IIOReader reads an industrial I/O raw-value file such as
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type IIOReader struct {
	Path string
}

// ReadRaw implements Reader.
func (r IIOReader) ReadRaw(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: parsing %s: %w", ErrRead, r.Path, err)
	}
	return raw, nil
}

// simStep is the largest change between two simulated readings.
const simStep = 40

// SimReader is a bounded random walk between the calibration values.
// It stands in for the probe on development machines.
type SimReader struct {
	mu     sync.Mutex
	rng    *rand.Rand
	lo, hi int
	value  int
}

// NewSimReader starts the walk halfway between dry and wet.
func NewSimReader(dry, wet int, seed uint64) *SimReader {
	lo, hi := min(dry, wet), max(dry, wet)
	return &SimReader{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		lo:    lo,
		hi:    hi,
		value: lo + (hi-lo)/2,
	}
}

// ReadRaw implements Reader.
func (r *SimReader) ReadRaw(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.value += r.rng.IntN(2*simStep+1) - simStep
	r.value = min(max(r.value, r.lo), r.hi)
	return r.value, nil
}
