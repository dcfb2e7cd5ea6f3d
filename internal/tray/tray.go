// Package tray provides glide's macOS system tray icon.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the macOS system tray application.
type Tray struct {
	onToggle  func(enabled bool)
	onOpenHud func()
	onQuit    func()
	enabled   bool
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuEpisode *systray.MenuItem
	menuOpenHud *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpenHud sets the callback function to be called when the "Open HUD in
// browser" menu item is clicked.
func (t *Tray) OnOpenHud(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenHud = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Glide")
	systray.SetTooltip("Glide - webcam scroll")

	t.menuToggle = systray.AddMenuItem("● Scrolling: Enabled", "Toggle scroll dispatch")
	systray.AddSeparator()

	t.menuEpisode = systray.AddMenuItem("Last episode: none", "Peak speed of the last completed scroll episode")
	t.menuEpisode.Disable()
	systray.AddSeparator()

	t.menuOpenHud = systray.AddMenuItem("Open HUD in browser", "Open the on-screen HUD's companion page")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Glide")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuOpenHud.ClickedCh:
				t.handleOpenHud()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
// It performs cleanup tasks.
func (t *Tray) onExit() {
	// Cleanup resources if needed
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if enabled {
		t.menuToggle.SetTitle("● Scrolling: Enabled")
	} else {
		t.menuToggle.SetTitle("○ Scrolling: Disabled")
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleOpenHud handles the "Open HUD in browser" menu item click.
func (t *Tray) handleOpenHud() {
	t.mu.RLock()
	callback := t.onOpenHud
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.handleExternalQuit()
}

// Quit runs the same shutdown path as clicking the Quit menu item. Callers
// outside the menu loop (e.g. a SIGINT/SIGTERM handler) use this to unblock
// Run.
func (t *Tray) Quit() {
	t.handleExternalQuit()
}

func (t *Tray) handleExternalQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastEpisode updates the last-episode display in the menu with its peak
// speed (already normalized to [0,1] by the dispatcher). A zero or negative
// peak is displayed as "none".
func (t *Tray) SetLastEpisode(peakSpeed float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuEpisode == nil {
		return
	}
	if peakSpeed <= 0 {
		t.menuEpisode.SetTitle("Last episode: none")
		return
	}
	t.menuEpisode.SetTitle(fmt.Sprintf("Last episode: peak %.2f", peakSpeed))
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
