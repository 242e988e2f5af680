// Package main provides the entry point for the RefView application.
package main

import (
	"log"
	"os"
	"time"

	"refview/internal/app"
	"refview/ui/mainwindow"
	"refview/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

const (
	appTitle   = "RefView"
	appID      = "io.refview.app"
	appVersion = "1.0.0"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", appTitle, appVersion)

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.RefViewTheme{})

	appPrefs := prefs.Load()

	appState := app.NewState()
	appState.SetEnabled(appPrefs.Bool(prefs.KeyOverlaysOn, true))

	win := mainwindow.New(fyneApp, appState, appPrefs)

	// Open a session passed on the command line.
	if len(os.Args) > 1 {
		sessionPath := os.Args[1]
		if err := appState.LoadSession(sessionPath); err != nil {
			log.Printf("Failed to load session %s: %v", sessionPath, err)
		}
	}

	setupHotReload(win)

	win.ShowAndRun()

	win.SavePreferences()
}

// setupHotReload configures restart detection when the binary is recompiled.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		log.Println("Hot reload: unable to determine executable path")
		return
	}

	log.Printf("Hot reload: watching %s", reloader.ExecPath())

	reloader.OnNewBinary(func() {
		dialog.ShowConfirm("New Build",
			"A newer binary was detected. Restart now?",
			func(restart bool) {
				if !restart {
					reloader.ResetBaseline()
					reloader.Start()
					return
				}
				win.SavePreferences()
				if err := reloader.Restart(); err != nil {
					log.Printf("Hot reload: restart failed: %v", err)
				}
			},
			win.Window)
	})
	reloader.Start()
}
