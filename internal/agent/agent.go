// Package agent drives shadow synchronisation for one device.
//
// The Agent owns the only copy of shadow.EngineState and mutates it from a
// single loop goroutine. Transport callbacks never touch the state: they
// decode and enqueue into a bounded inbox that the loop drains once per
// tick, so inbound handling and spontaneous reporting never interleave.
//
// Per tick:
//
//	drain inbox → reduce each event → sample sensor → detector → execute intents
//
// Intents run in the order they were produced. A PublishReport outcome is
// fed straight back into the reducer as a PublishResult event.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/shadow-agent/internal/infrastructure/logging"
	"github.com/nerrad567/shadow-agent/internal/infrastructure/mqtt"
	"github.com/nerrad567/shadow-agent/internal/journal"
	"github.com/nerrad567/shadow-agent/internal/shadow"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultTickInterval  = 100 * time.Millisecond
	DefaultPruneInterval = time.Hour

	// journalTimeout bounds a single journal write from the loop.
	journalTimeout = 2 * time.Second
)

// SensorSource samples the moisture probe.
type SensorSource interface {
	Sample(ctx context.Context) (shadow.SensorSnapshot, error)
}

// Actuator moves the servo.
type Actuator interface {
	SetAngle(angle int) error
}

// Transport publishes to the broker. Publish returning nil means local
// acceptance only.
type Transport interface {
	IsConnected() bool
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber registers inbound handlers. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SetOnConnect(callback func())
}

// Journal records shadow traffic. Optional.
type Journal interface {
	Record(ctx context.Context, entry *journal.Entry) error
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Metrics records telemetry. Optional; *influxdb.Client satisfies it.
type Metrics interface {
	WriteSoilMoisture(raw, percent int, humidityRange string, at time.Time)
	WriteServo(angle int, emotion string, at time.Time)
	WriteShadowSync(version uint64, trigger string, at time.Time)
}

// Config holds the agent's timing and identity.
type Config struct {
	Thing string
	QoS   byte
	Poses shadow.Poses

	TickInterval      time.Duration
	MinReportInterval time.Duration
	GetRetryInterval  time.Duration
	QueueSize         int

	// Retention is the journal age limit. Zero disables pruning.
	Retention     time.Duration
	PruneInterval time.Duration

	// SampleInterval paces metric samples. Zero disables sampling.
	SampleInterval time.Duration
}

// Deps holds the agent's collaborators.
type Deps struct {
	Config    Config
	Logger    *logging.Logger
	Sensor    SensorSource
	Actuator  Actuator
	Transport Transport
	Journal   Journal
	Metrics   Metrics

	// Reports overrides the report builder. Defaults to UUID client tokens.
	Reports *shadow.ReportBuilder

	// Now overrides the clock.
	Now func() time.Time
}

// Snapshot is a read-only view of the agent for status reporting.
type Snapshot struct {
	State     shadow.EngineState
	Sensor    shadow.SensorSnapshot
	Emotion   shadow.Emotion
	Connected bool
	Queued    int
	Dropped   uint64
	UpdatedAt time.Time
}

// Agent runs the synchronisation loop.
type Agent struct {
	cfg       Config
	topics    mqtt.Topics
	logger    *logging.Logger
	sensor    SensorSource
	actuator  Actuator
	transport Transport
	journal   Journal
	metrics   Metrics
	now       func() time.Time

	inbox    *shadow.Inbox
	decoder  *shadow.Decoder
	reports  shadow.ReportBuilder
	reducer  *shadow.Reducer
	detector *shadow.Detector

	// Loop goroutine only.
	state  shadow.EngineState
	sample shadow.SensorSnapshot

	mu       sync.RWMutex
	snapshot Snapshot
}

// New creates an Agent. Sensor, Actuator, Transport and Logger are required.
func New(deps Deps) (*Agent, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Sensor == nil:
		return nil, fmt.Errorf("sensor is required")
	case deps.Actuator == nil:
		return nil, fmt.Errorf("actuator is required")
	case deps.Transport == nil:
		return nil, fmt.Errorf("transport is required")
	case deps.Config.Thing == "":
		return nil, fmt.Errorf("thing name is required")
	}

	cfg := deps.Config
	if cfg.Poses == (shadow.Poses{}) {
		cfg.Poses = shadow.DefaultPoses()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultPruneInterval
	}

	reports := shadow.NewReportBuilder(cfg.Poses)
	if deps.Reports != nil {
		reports = *deps.Reports
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	topics := mqtt.Topics{Thing: cfg.Thing}
	reducerLog := deps.Logger.Component("shadow")

	detector := shadow.NewDetector(reports, reducerLog)
	if cfg.MinReportInterval > 0 {
		detector.MinReportInterval = cfg.MinReportInterval
	}
	if cfg.GetRetryInterval > 0 {
		detector.GetRetryInterval = cfg.GetRetryInterval
	}

	a := &Agent{
		cfg:       cfg,
		topics:    topics,
		logger:    deps.Logger.Component("agent"),
		sensor:    deps.Sensor,
		actuator:  deps.Actuator,
		transport: deps.Transport,
		journal:   deps.Journal,
		metrics:   deps.Metrics,
		now:       now,
		inbox:     shadow.NewInbox(cfg.QueueSize),
		decoder:   shadow.NewDecoder(topics.Root()),
		reports:   reports,
		reducer:   shadow.NewReducer(reports, reducerLog),
		detector:  detector,
		state:     shadow.NewEngineState(cfg.Poses),
	}
	a.publishSnapshot()
	return a, nil
}

// Subscribe registers the inbound shadow topics and the connect hook on s.
// Call it before connecting so the first session also raises a GET.
func (a *Agent) Subscribe(s Subscriber) error {
	s.SetOnConnect(a.HandleConnect)
	for _, topic := range a.topics.Inbound() {
		if err := s.Subscribe(topic, a.cfg.QoS, a.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	return nil
}

// HandleMessage decodes one inbound message and enqueues it. It is safe to
// call from any goroutine and never blocks on the loop.
func (a *Agent) HandleMessage(topic string, payload []byte) error {
	ev, err := a.decoder.Decode(topic, payload)
	if err != nil {
		return err
	}
	return a.inbox.Push(shadow.Inbound{
		Event:      ev,
		Topic:      topic,
		Payload:    payload,
		ReceivedAt: a.now(),
	})
}

// HandleConnect enqueues a Connected event.
func (a *Agent) HandleConnect() {
	err := a.inbox.Push(shadow.Inbound{Event: shadow.Connected{}, ReceivedAt: a.now()})
	if err != nil {
		a.logger.Error("connected event dropped", "error", err)
	}
}

// Run ticks until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("shadow agent started",
		"tick_interval", a.cfg.TickInterval,
		"update_topic", a.topics.Update(),
	)

	tick := time.NewTicker(a.cfg.TickInterval)
	defer tick.Stop()

	var pruneC, sampleC <-chan time.Time
	if a.journal != nil && a.cfg.Retention > 0 {
		prune := time.NewTicker(a.cfg.PruneInterval)
		defer prune.Stop()
		pruneC = prune.C
	}
	if a.metrics != nil && a.cfg.SampleInterval > 0 {
		sample := time.NewTicker(a.cfg.SampleInterval)
		defer sample.Stop()
		sampleC = sample.C
	}

	// Reports raised by the first tick's events carry a real reading.
	a.refreshSensor(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shadow agent stopped", "version", a.state.KnownVersion)
			return nil
		case <-tick.C:
			a.Tick(ctx)
		case <-pruneC:
			a.prune(ctx)
		case <-sampleC:
			a.writeSample()
		}
	}
}

// Tick runs one loop iteration. Not safe for concurrent use; Run calls it
// from the loop goroutine.
func (a *Agent) Tick(ctx context.Context) {
	connected := a.transport.IsConnected()

	// Events see the sample from the previous tick.
	for _, in := range a.inbox.Drain() {
		a.recordInbound(ctx, in)
		a.apply(ctx, in.Event, a.observe(connected))
	}

	a.refreshSensor(ctx)

	obs := a.observe(connected)
	var intents []shadow.Intent
	a.state, intents = a.detector.Evaluate(a.state, obs)
	a.execute(ctx, intents, obs)

	a.publishSnapshot()
}

// Snapshot returns the state as of the last completed tick.
func (a *Agent) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

func (a *Agent) observe(connected bool) shadow.Observation {
	return shadow.Observation{
		Now:       a.now(),
		Connected: connected,
		Sensor:    a.sample,
	}
}

func (a *Agent) refreshSensor(ctx context.Context) {
	sample, err := a.sensor.Sample(ctx)
	if err != nil {
		a.logger.Warn("moisture sample failed, keeping previous reading", "error", err)
		return
	}
	a.sample = sample
}

// apply reduces ev and executes the resulting intents.
func (a *Agent) apply(ctx context.Context, ev shadow.Event, obs shadow.Observation) {
	next, intents, err := a.reducer.Reduce(a.state, ev, obs)
	if err != nil {
		a.logger.Warn("shadow event dropped", "kind", string(ev.Kind()), "error", err)
		return
	}
	a.state = next
	a.execute(ctx, intents, obs)
}

func (a *Agent) execute(ctx context.Context, intents []shadow.Intent, obs shadow.Observation) {
	for _, intent := range intents {
		switch in := intent.(type) {
		case shadow.SetAngle:
			a.setAngle(in.Angle, obs.Now)
		case shadow.PublishReport:
			a.publishReport(ctx, in, obs)
		case shadow.RequestGet:
			a.requestGet(ctx, in)
		default:
			a.logger.Error("unknown intent", "type", fmt.Sprintf("%T", intent))
		}
	}
}

func (a *Agent) setAngle(angle int, at time.Time) {
	if err := a.actuator.SetAngle(angle); err != nil {
		a.logger.Error("servo command failed", "angle", angle, "error", err)
		return
	}
	if a.metrics != nil {
		a.metrics.WriteServo(angle, a.state.ReportedEmotion(a.cfg.Poses).String(), at)
	}
}

func (a *Agent) publishReport(ctx context.Context, in shadow.PublishReport, obs shadow.Observation) {
	result := shadow.PublishResult{Trigger: in.Trigger, Range: in.Range}

	payload, err := in.Document.Marshal()
	if err == nil {
		err = a.transport.Publish(a.topics.Update(), payload, a.cfg.QoS, false)
	}

	if err != nil {
		result.Err = err
	} else {
		result.OK = true
		a.logger.Info("shadow report published",
			"trigger", string(in.Trigger),
			"version", in.Document.Version,
			"client_token", in.Document.ClientToken,
		)
		version := uint64(in.Document.Version)
		a.record(ctx, &journal.Entry{
			Direction:   journal.DirectionOutbound,
			Kind:        "report_" + string(in.Trigger),
			Version:     &version,
			ClientToken: in.Document.ClientToken,
			Payload:     string(payload),
		})
		if a.metrics != nil {
			a.metrics.WriteShadowSync(version, string(in.Trigger), obs.Now)
		}
	}

	a.apply(ctx, result, obs)
}

func (a *Agent) requestGet(ctx context.Context, in shadow.RequestGet) {
	req := a.reports.GetRequest()
	payload, err := json.Marshal(req)
	if err == nil {
		err = a.transport.Publish(a.topics.Get(), payload, a.cfg.QoS, false)
	}
	if err != nil {
		a.logger.Warn("shadow get request failed", "reason", in.Reason, "error", err)
		return
	}

	a.logger.Info("shadow get requested", "reason", in.Reason, "client_token", req.ClientToken)
	a.record(ctx, &journal.Entry{
		Direction:   journal.DirectionOutbound,
		Kind:        "get_request",
		ClientToken: req.ClientToken,
		Payload:     string(payload),
	})
}

func (a *Agent) recordInbound(ctx context.Context, in shadow.Inbound) {
	entry := &journal.Entry{
		Direction:   journal.DirectionInbound,
		Kind:        string(in.Event.Kind()),
		ClientToken: shadow.EventClientToken(in.Event),
		Payload:     string(in.Payload),
		CreatedAt:   in.ReceivedAt,
	}
	if v, ok := shadow.EventVersion(in.Event); ok {
		version := uint64(v)
		entry.Version = &version
	}
	a.record(ctx, entry)
}

func (a *Agent) record(ctx context.Context, entry *journal.Entry) {
	if a.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	if err := a.journal.Record(ctx, entry); err != nil {
		a.logger.Warn("journal write failed", "kind", entry.Kind, "error", err)
	}
}

func (a *Agent) prune(ctx context.Context) {
	n, err := a.journal.Prune(ctx, a.cfg.Retention)
	if err != nil {
		a.logger.Warn("journal prune failed", "error", err)
		return
	}
	if n > 0 {
		a.logger.Info("journal pruned", "deleted", n, "retention", a.cfg.Retention)
	}
}

func (a *Agent) writeSample() {
	now := a.now()
	a.metrics.WriteSoilMoisture(a.sample.Raw, a.sample.Percent, a.sample.Range.String(), now)
	a.metrics.WriteServo(a.state.Angle, a.state.ReportedEmotion(a.cfg.Poses).String(), now)
}

func (a *Agent) publishSnapshot() {
	snap := Snapshot{
		State:     a.state,
		Sensor:    a.sample,
		Emotion:   a.state.ReportedEmotion(a.cfg.Poses),
		Connected: a.transport.IsConnected(),
		Queued:    a.inbox.Len(),
		Dropped:   a.inbox.Dropped(),
		UpdatedAt: a.now(),
	}

	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()
}
