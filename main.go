package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"ama/audio"
	"ama/config"
	"ama/doctor"
	"ama/feed"
	"ama/hotkey"
	"ama/log"
	"ama/shutdown"
)

var version = "dev"

var crashFile *os.File

// initCrashLog routes fatal runtime errors to crash_log.txt in the log
// directory. It runs before flag parsing, so only AMA_LOG_PATH is honored
// here; run() reopens the file once -logpath is known.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	openCrashLog(dir)
}

func openCrashLog(dir string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		f.Close()
		return
	}
	if crashFile != nil {
		crashFile.Close()
	}
	crashFile = f
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func run() {
	versionFlag := flag.Bool("version", false, "Print version and exit")
	deviceFlag := flag.String("device", "", "Use named microphone device (substring match)")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	configFlag := flag.String("config", "", "config file path (default: OS-specific location)")
	feedFlag := flag.String("feed", "", "Serve the websocket state feed on this address (e.g., localhost:7070)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	debugFlag := flag.Bool("debug", false, "Log debug events to the diagnostics log")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("ama %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	if *logPathFlag != "" {
		openCrashLog(logPath)
	}

	cfgPath := *configFlag
	if cfgPath == "" {
		if cfgPath, err = config.DefaultPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *deviceFlag != "" {
		cfg.Audio.Device = *deviceFlag
	}
	if *feedFlag != "" {
		cfg.Feed.Addr = *feedFlag
	}

	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Options{Device: cfg.Audio.Device}))
	}

	if err := log.Init(*debugFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: ama -test <wav-file>")
			os.Exit(1)
		}
		os.Exit(runTestMode(args[0], cfg))
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var device *audio.DeviceInfo
	if *setupFlag {
		device, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		} else if device != nil {
			cfg.Audio.Device = device.Name
			if err := config.Save(cfg, cfgPath); err != nil {
				log.Warnf("save device choice: %v", err)
			}
		}
	} else {
		device, err = audio.FindDevice(actx, cfg.Audio.Device)
		if err != nil {
			fmt.Printf("Warning: %v, using system default\n", err)
			log.Warnf("find device: %v", err)
		}
	}

	c := defaultCollaborators(cfg)
	a, err := newAgent(actx, cfg, device, c)
	if err != nil {
		log.Errorf("agent init error: %v", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()
	log.SessionStart(a.deviceName(), cfg.Audio.Format, c.transcriber.Name(), "echo")

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	go func() {
		if err := a.orch.Run(ctx); err != nil {
			log.Errorf("orchestrator: %v", err)
		}
	}()

	if cfg.Feed.Addr != "" {
		srv := feed.New(a.orch, feed.Config{}, log.Component("feed"))
		a.addSink(feedSink{srv: srv})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Feed.Addr); err != nil {
				a.notice("feed: %v", err)
			}
		}()
	}

	if *tuiFlag {
		p := NewTUIProgram(a.orch, deviceLineText(device))
		a.addSink(newTUISink(p))
		go listenHotkey(ctx, a, cfg.Hotkey.Debounce)
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
		if _, err := p.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		stop()
		return
	}

	fmt.Printf("ama %s listening on %s. Press Ctrl+Shift+Space to talk, Ctrl+C to quit.\n", version, a.deviceName())
	a.addSink(lineSink{w: os.Stdout})
	go listenHotkey(ctx, a, cfg.Hotkey.Debounce)
	<-ctx.Done()
}

// listenHotkey toggles the conversation on every debounced press until ctx
// ends. A missing keyboard leaves the other controls working.
func listenHotkey(ctx context.Context, a *agent, window time.Duration) {
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		if errors.Is(err, hotkey.ErrNoKeyboard) {
			if diag, derr := hotkey.Diagnose(); derr == nil {
				log.Warn(diag)
			}
		}
		a.notice("hotkey unavailable: %v", err)
		return
	}
	defer hk.Unregister()

	for range hotkey.Debounce(ctx, hk, window) {
		a.orch.Toggle()
	}
}
