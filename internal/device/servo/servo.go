// Package servo drives the emotional servo.
//
// A Servo clamps every command to 0..180 degrees before it reaches the
// driver and remembers the last commanded angle. Two drivers exist: a
// sysfs PWM channel for hardware and an in-memory driver for development
// and tests.
package servo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/nerrad567/shadow-agent/internal/infrastructure/config"
	"github.com/nerrad567/shadow-agent/internal/shadow"
)

// Driver names.
const (
	DriverMemory = "memory"
	DriverPWM    = "pwm"
)

// ErrWrite wraps driver failures.
var ErrWrite = errors.New("servo: write failed")

// Driver moves the horn to an angle already clamped to 0..180.
type Driver interface {
	Write(angle int) error
	Close() error
}

// Servo is safe for concurrent use.
type Servo struct {
	mu     sync.Mutex
	driver Driver
	angle  int
}

// New builds a Servo for the configured driver and moves it to the
// neutral pose.
func New(cfg config.ServoConfig) (*Servo, error) {
	var driver Driver
	switch cfg.Driver {
	case DriverMemory:
		driver = &MemoryDriver{}
	case DriverPWM:
		pwm, err := OpenPWM(cfg.PWMPath, cfg.MinPulseUS, cfg.MaxPulseUS)
		if err != nil {
			return nil, err
		}
		driver = pwm
	default:
		return nil, fmt.Errorf("servo: unknown driver %q", cfg.Driver)
	}

	s := &Servo{driver: driver}
	if err := s.SetAngle(cfg.NeutralAngle); err != nil {
		driver.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return s, nil
}

// NewWithDriver wraps driver without moving it.
func NewWithDriver(driver Driver, initial int) *Servo {
	return &Servo{driver: driver, angle: shadow.ClampAngle(initial)}
}

// SetAngle clamps angle and commands the driver. The remembered angle is
// only updated when the driver accepts the write.
func (s *Servo) SetAngle(angle int) error {
	angle = shadow.ClampAngle(angle)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.driver.Write(angle); err != nil {
		return fmt.Errorf("%w: angle %d: %w", ErrWrite, angle, err)
	}
	s.angle = angle
	return nil
}

// Angle returns the last commanded angle.
func (s *Servo) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Close releases the driver.
func (s *Servo) Close() error {
	return s.driver.Close()
}

// MemoryDriver records writes.
type MemoryDriver struct {
	mu     sync.Mutex
	writes []int
}

// Write implements Driver.
func (d *MemoryDriver) Write(angle int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, angle)
	return nil
}

// Writes returns a copy of every angle written so far.
func (d *MemoryDriver) Writes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.writes...)
}

// Close implements Driver.
func (d *MemoryDriver) Close() error { return nil }

// Hobby servos expect a 50 Hz frame.
const pwmPeriodNS = 20_000_000

// PWMDriver drives an exported sysfs PWM channel, e.g.
// /sys/class/pwm/pwmchip0/pwm0.
type PWMDriver struct {
	dir        string
	minPulseUS int
	maxPulseUS int
}

// OpenPWM sets the channel period and enables it.
func OpenPWM(dir string, minPulseUS, maxPulseUS int) (*PWMDriver, error) {
	d := &PWMDriver{dir: dir, minPulseUS: minPulseUS, maxPulseUS: maxPulseUS}
	if err := d.writeAttr("period", pwmPeriodNS); err != nil {
		return nil, err
	}
	if err := d.writeAttr("enable", 1); err != nil {
		return nil, err
	}
	return d, nil
}

// PulseUS returns the pulse width for angle, linear between the limits.
func (d *PWMDriver) PulseUS(angle int) int {
	return d.minPulseUS + (d.maxPulseUS-d.minPulseUS)*angle/shadow.MaxAngle
}

// Write implements Driver.
func (d *PWMDriver) Write(angle int) error {
	return d.writeAttr("duty_cycle", d.PulseUS(angle)*1000)
}

// Close disables the channel.
func (d *PWMDriver) Close() error {
	return d.writeAttr("enable", 0)
}

func (d *PWMDriver) writeAttr(name string, value int) error {
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, []byte(strconv.Itoa(value)), 0o600); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}
