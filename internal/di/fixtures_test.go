package di

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/metadata"
	"github.com/xraph/conductor/logger"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *metadata.Store, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	store := metadata.NewStore()
	base := []Option{
		WithLogger(logger.NewFromZap(zap.New(core))),
		WithMetadata(store),
	}

	r := New(append(base, opts...)...)
	t.Cleanup(r.Clear)
	return r, store, logs
}

// recorder collects events of one name.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(r *Registry, name string) *recorder {
	rec := &recorder{}
	r.On(name, func(evt events.Event) error {
		rec.mu.Lock()
		rec.events = append(rec.events, evt)
		rec.mu.Unlock()
		return nil
	})
	return rec
}

func (rec *recorder) all() []events.Event {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]events.Event(nil), rec.events...)
}

func (rec *recorder) len() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.events)
}

type Mailer struct {
	From string
}

func NewMailer() *Mailer {
	return &Mailer{From: "noreply"}
}

type Repo struct {
	Mailer *Mailer
}

func NewRepo(m *Mailer) *Repo {
	return &Repo{Mailer: m}
}

type Billing struct {
	Repo *Repo
	Rate int
}

func NewBilling(repo *Repo, rate int) *Billing {
	return &Billing{Repo: repo, Rate: rate}
}

type Sender interface {
	Send(to string) error
}

type smtpSender struct{}

func (smtpSender) Send(string) error { return nil }

type Alerts struct {
	Sender Sender
}

func NewAlerts(s Sender) *Alerts {
	return &Alerts{Sender: s}
}

type cycA struct{ b *cycB }
type cycB struct{ a *cycA }

func newCycA(b *cycB) *cycA { return &cycA{b: b} }
func newCycB(a *cycA) *cycB { return &cycB{a: a} }

type selfRef struct{}

func newSelfRef(*selfRef) *selfRef { return &selfRef{} }

// Orders has real methods; interception goes through the method table.
type Orders struct {
	placed atomic.Int32
}

func NewOrders() *Orders {
	return &Orders{}
}

func (o *Orders) Place(id string) (string, error) {
	if id == "" {
		return "", errors.New("empty order id")
	}
	o.placed.Add(1)
	return "placed:" + id, nil
}

func (o *Orders) Count() int {
	return int(o.placed.Load())
}

// Notifier exposes a func field that is patched in place.
type Notifier struct {
	Notify func(msg string) error
	sent   []string
}

func NewNotifier() *Notifier {
	n := &Notifier{}
	n.Notify = func(msg string) error {
		n.sent = append(n.sent, msg)
		return nil
	}
	return n
}

// worker is transient; its wrapped methods live in the embedded table.
type worker struct {
	Intercepted
	id int
}

var workerSeq atomic.Int32

func newWorker() *worker {
	return &worker{id: int(workerSeq.Add(1))}
}

func (w *worker) Work(n int) int {
	return n * 2
}

type Audit struct {
	mu      sync.Mutex
	orders  []string
	names   []string
	touched int
}

func NewAudit() *Audit {
	return &Audit{}
}

func (a *Audit) OnPlaced(inv events.Invocation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := inv.Args[0].(string); ok {
		a.orders = append(a.orders, id)
	}
}

func (a *Audit) OnEvent(evt events.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.names = append(a.names, evt.Name)
}

func (a *Audit) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.touched++
}

func (a *Audit) Reject(string) error {
	return errors.New("rejected")
}

func (a *Audit) snapshot() ([]string, []string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.orders...), append([]string(nil), a.names...), a.touched
}

type Monitor struct {
	mu    sync.Mutex
	calls []string
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) Record(inv events.Invocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, inv.Class+"."+inv.Method)
}

func (m *Monitor) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type Heartbeat struct {
	beats  atomic.Int64
	sweeps atomic.Int64
}

func NewHeartbeat() *Heartbeat {
	return &Heartbeat{}
}

func (h *Heartbeat) Beat() {
	h.beats.Add(1)
}

func (h *Heartbeat) Sweep(ctx context.Context) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	h.sweeps.Add(1)
	return nil
}

type unregistered struct{}

type Report struct {
	Mailer  *Mailer `inject:""`
	Billing *Billing
	Repo    *Repo
	Ghost   *unregistered `inject:""`
	Label   string        `inject:"label"`
}
