package audio

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"tailor/internal/config"
	"tailor/internal/logging"
)

// DeviceEvent reports a capture device appearing or disappearing.
type DeviceEvent struct {
	Action string // "add" or "remove"
	Device string
}

// DeviceMonitor listens for udev netlink events on the sound subsystem and
// forwards capture-device hotplug to a channel consumed by the CLI loop.
type DeviceMonitor struct {
	logger *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	events  chan DeviceEvent
	running bool
}

// NewDeviceMonitor creates a monitor when hotplug watching is enabled;
// otherwise it returns nil, and all methods on a nil monitor are no-ops.
func NewDeviceMonitor(cfg *config.Config, logger *slog.Logger) *DeviceMonitor {
	if cfg == nil || !cfg.Audio.MonitorHotplug {
		return nil
	}
	return &DeviceMonitor{
		logger: logging.NewComponentLogger(logger, "device-monitor"),
	}
}

// Events returns the hotplug event channel, or nil when the monitor is
// disabled or not started.
func (m *DeviceMonitor) Events() <-chan DeviceEvent {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

// Start begins listening for sound-subsystem udev events. A missing or
// unreadable netlink socket is non-fatal; recording still works, only the
// hotplug notifications are unavailable.
func (m *DeviceMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("netlink socket unavailable; device hotplug notifications disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldImpact, "microphone changes will not be announced"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.events = make(chan DeviceEvent, 8)
	m.running = true

	quit := m.quit
	events := m.events
	go m.monitorLoop(ctx, quit, events)

	m.logger.Info("device monitor started",
		logging.String(logging.FieldEventType, "device_monitor_started"),
	)
	return nil
}

// Stop shuts the monitor down and closes the event channel.
func (m *DeviceMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("device monitor stopped",
		logging.String(logging.FieldEventType, "device_monitor_stopped"),
	)
}

func (m *DeviceMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}, events chan<- DeviceEvent) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, soundMatcher())

	defer close(events)
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			event, ok := captureEvent(uevent)
			if !ok {
				continue
			}
			m.logger.Info("capture device changed",
				logging.String("action", event.Action),
				logging.String("device", event.Device),
			)
			select {
			case events <- event:
			default:
				// Consumer is behind; hotplug events are advisory only.
			}
		case err := <-errs:
			m.logger.Warn("device monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "device_monitor_error"),
			)
		}
	}
}

// soundMatcher matches add/remove events on the sound subsystem.
func soundMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "sound",
		},
	})
	return rules
}

func captureEvent(uevent netlink.UEvent) (DeviceEvent, bool) {
	name := uevent.Env["DEVNAME"]
	if name == "" {
		name = uevent.KObj
	}
	// Only capture nodes matter; skip playback-only and control nodes.
	base := name[strings.LastIndex(name, "/")+1:]
	if !strings.HasPrefix(base, "pcmC") && !strings.HasPrefix(base, "card") {
		return DeviceEvent{}, false
	}
	return DeviceEvent{
		Action: string(uevent.Action),
		Device: name,
	}, true
}
