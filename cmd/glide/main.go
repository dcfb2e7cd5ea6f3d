package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/glide/internal/app"
	"github.com/ayusman/glide/internal/config"
	"github.com/ayusman/glide/internal/store"
	"github.com/ayusman/glide/internal/tray"
)

func main() {
	fmt.Println("Glide - webcam scroll")

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".glide")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dataDir, "glide.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	pluginDir := filepath.Join(dataDir, "plugins")
	os.MkdirAll(pluginDir, 0755)

	a, err := app.New(app.Config{
		AppConfig: cfg,
		Store:     st,
		PluginDir: pluginDir,
		CameraID:  0,
	})
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}
	defer a.Stop()

	t := tray.New()
	t.OnToggle(func(enabled bool) {
		a.SetEnabled(enabled)
	})
	t.OnOpenHud(func() {
		if cfg.Hud.Enabled {
			openHudPage(cfg.Hud.Port)
		}
	})
	t.OnQuit(func() {
		cancel()
	})

	go watchSignals(t)
	go pollLatestEpisode(ctx, a, st, t)

	fmt.Println("Glide running. Use the tray icon to pause scrolling or quit.")
	t.Run()
}

// pollLatestEpisode refreshes the tray's "Last episode" display every few
// seconds. The episode log is written from a background goroutine, so
// polling avoids adding a notification path into the frame thread just for
// a menu label.
func pollLatestEpisode(ctx context.Context, a *app.App, st *store.Store, t *tray.Tray) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.SetLastEpisode(a.LatestEpisode(st))
		}
	}
}

// openHudPage prints the HUD's session URL. glide has no bundled browser
// launcher, so opening it is left to the user.
func openHudPage(port uint16) {
	fmt.Printf("HUD: http://localhost:%d/\n", port)
}

// watchSignals runs the tray's quit path on SIGINT/SIGTERM, so a terminal
// Ctrl-C shuts the daemon down the same way the "Quit" menu item does.
func watchSignals(t *tray.Tray) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	t.Quit()
}
