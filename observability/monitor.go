// Package observability aggregates operational counters and process
// metrics for the health endpoint.
package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is the snapshot served at /healthz.
type Stats struct {
	BookingsCreated      uint64  `json:"bookings_created"`
	SlotConflicts        uint64  `json:"slot_conflicts"`
	MessagesSent         uint64  `json:"messages_sent"`
	ReadReceipts         uint64  `json:"read_receipts"`
	EventsDelivered      uint64  `json:"events_delivered"`
	NotificationsDropped uint64  `json:"notifications_dropped"`
	OpenConnections      int64   `json:"open_connections"`
	RSSBytes             uint64  `json:"rss_bytes"`
	CPUPercent           float64 `json:"cpu_percent"`
	AllocMemMB           uint64  `json:"alloc_mem_mb"`
	NumGC                uint32  `json:"num_gc"`
}

type Monitor struct {
	log  *slog.Logger
	proc *process.Process

	mu     sync.RWMutex
	latest Stats

	bookingsCreated      atomic.Uint64
	slotConflicts        atomic.Uint64
	messagesSent         atomic.Uint64
	readReceipts         atomic.Uint64
	eventsDelivered      atomic.Uint64
	notificationsDropped atomic.Uint64
	openConnections      atomic.Int64
}

func NewMonitor(log *slog.Logger) *Monitor {
	// Best effort: self-inspection can fail on exotic platforms, counters
	// still work without it.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process self-inspection unavailable", "error", err)
		proc = nil
	}
	return &Monitor{log: log, proc: proc}
}

func (m *Monitor) IncrBookingsCreated()      { m.bookingsCreated.Add(1) }
func (m *Monitor) IncrSlotConflicts()        { m.slotConflicts.Add(1) }
func (m *Monitor) IncrMessagesSent()         { m.messagesSent.Add(1) }
func (m *Monitor) IncrReadReceipts()         { m.readReceipts.Add(1) }
func (m *Monitor) IncrEventsDelivered()      { m.eventsDelivered.Add(1) }
func (m *Monitor) IncrNotificationsDropped() { m.notificationsDropped.Add(1) }
func (m *Monitor) ConnOpened()               { m.openConnections.Add(1) }
func (m *Monitor) ConnClosed()               { m.openConnections.Add(-1) }

func (m *Monitor) Snapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Run refreshes the snapshot on a fixed cadence. Intended to be started
// under the supervisor alongside the notification fan-out.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	m.refresh()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Stopping monitor")
			return nil
		case <-ticker.C:
			m.refresh()
		}
	}
}

func (m *Monitor) refresh() {
	stats := Stats{
		BookingsCreated:      m.bookingsCreated.Load(),
		SlotConflicts:        m.slotConflicts.Load(),
		MessagesSent:         m.messagesSent.Load(),
		ReadReceipts:         m.readReceipts.Load(),
		EventsDelivered:      m.eventsDelivered.Load(),
		NotificationsDropped: m.notificationsDropped.Load(),
		OpenConnections:      m.openConnections.Load(),
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMB = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC

	if m.proc != nil {
		if memInfo, err := m.proc.MemoryInfo(); err == nil {
			stats.RSSBytes = memInfo.RSS
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()
}
