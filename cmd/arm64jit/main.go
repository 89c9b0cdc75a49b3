// Command arm64jit loads a flat ARM64 binary image into a guest
// address space and runs it under the dynamic binary translator.
// Version/Commit/Date are ldflags-overridable; the -api-server mode
// serves only a /healthz endpoint, with no guest loaded.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lookbusy1344/arm64jit/config"
	"github.com/lookbusy1344/arm64jit/dispatch"
	"github.com/lookbusy1344/arm64jit/guest"
	"github.com/lookbusy1344/arm64jit/guestmem"
	"github.com/lookbusy1344/arm64jit/guiapp"
	"github.com/lookbusy1344/arm64jit/signalhandler"
	"github.com/lookbusy1344/arm64jit/statsapi"
	"github.com/lookbusy1344/arm64jit/tui"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

// defaultLoadAddr is the guest base address a flat image is mapped at
// when -load-addr isn't given, chosen well clear of the null page.
const defaultLoadAddr = 0x400000

// defaultMapSize is the span mapped around the loaded image for code
// and adjoining data when the image itself doesn't fill a page.
const defaultMapSize = 16 << 20

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		apiServer   = flag.Bool("api-server", false, "Start HTTP stats API server mode")
		apiPort     = flag.Int("port", 0, "Stats API server port (default: config's dispatch.stats_port)")
		tuiMode     = flag.Bool("tui", false, "Show a live TUI stats dashboard while running")
		guiMode     = flag.Bool("gui", false, "Show a windowed stats viewer while running")
		loadAddr    = flag.Uint64("load-addr", defaultLoadAddr, "Guest address the image is mapped at")
		entryOffset = flag.Uint64("entry-offset", 0, "Entry point offset from load-addr")
		configPath  = flag.String("config", "", "Config file path (default: platform config dir)")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("arm64jit %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *apiServer {
		port := *apiPort
		if port == 0 {
			port = cfg.Dispatch.StatsPort
		}
		runAPIServerOnly(port)
		return
	}

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(0)
	}

	imagePath := flag.Arg(0)
	image, err := os.ReadFile(imagePath) // #nosec G304 -- user-specified guest image path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read image %s: %v\n", imagePath, err)
		os.Exit(1)
	}

	mapSize := defaultMapSize
	if len(image) > mapSize {
		mapSize = alignUp(len(image), 4096)
	}

	mem := guestmem.New()
	if err := mem.Map(uintptr(*loadAddr), mapSize, guestmem.ProtRead|guestmem.ProtWrite|guestmem.ProtExec, guestmem.FlagAnonymous|guestmem.FlagPrivate); err != nil {
		fmt.Fprintf(os.Stderr, "Error mapping guest image region: %v\n", err)
		os.Exit(1)
	}
	if err := mem.WriteAt(uintptr(*loadAddr), image); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading image into guest memory: %v\n", err)
		os.Exit(1)
	}

	entry := *loadAddr + *entryOffset
	state := guest.New(entry)
	state.SP = *loadAddr + uint64(mapSize) // top of the mapped region

	if *verboseMode {
		fmt.Printf("Loaded %s: %d bytes at 0x%x, entry 0x%x\n", imagePath, len(image), *loadAddr, entry)
	}

	d, err := dispatch.New(state, mem, dispatch.Config{
		CacheBits:       cfg.Cache.Bits,
		RegionSize:      cfg.Region.SizeBytes,
		MaxInstructions: cfg.Translate.MaxInstructionsPerBlock,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing dispatcher: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := d.Close(); err != nil && *verboseMode {
			fmt.Fprintf(os.Stderr, "Warning: failed to close code region: %v\n", err)
		}
	}()

	// The CLI has no page-fault emulation layer behind it, so resumable
	// faults only stay resumable when the config asks for it; the
	// default is a diagnostic and exit. Embedders with a loader/
	// guest-OS layer install richer PolicyResumeDispatcher handlers.
	faults := signalhandler.New(
		func() uint64 { return state.PC },
		func(f signalhandler.Fault) {
			fmt.Fprintf(os.Stderr, "Guest fault: signal %v at guest pc %#x\n", f.Signal, f.GuestPC)
			if f.Policy == signalhandler.PolicyTerminate || cfg.Dispatch.FaultPolicy != "resume" {
				os.Exit(1)
			}
		},
	)
	if err := faults.Install(); err != nil {
		fmt.Fprintf(os.Stderr, "Error installing fault hooks: %v\n", err)
		os.Exit(1)
	}
	defer faults.Uninstall()
	d.SetFaultGuard(func(run func()) {
		defer faults.RecoverFault()
		run()
	})

	statsPort := *apiPort
	if statsPort == 0 {
		statsPort = cfg.Dispatch.StatsPort
	}
	if statsPort > 0 {
		srv := statsapi.NewServer(statsPort, d)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "Stats API server error: %v\n", err)
			}
		}()
	}

	if *tuiMode || cfg.Dispatch.EnableTUI {
		dash := tui.New(d, 500*time.Millisecond)
		go func() {
			if err := dash.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()
	}

	if *guiMode || cfg.Dispatch.EnableGUI {
		gui := guiapp.New(d, 500*time.Millisecond)
		go gui.Run()
	}

	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "\nGuest execution aborted: %v\n", err)
		os.Exit(1)
	}

	if *verboseMode {
		st := d.Stats()
		fmt.Printf("\nExecution complete: %d blocks translated, %d dispatcher exits\n", st.Blocks, st.Exits)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}

// runAPIServerOnly starts an HTTP server with no guest execution
// behind it; it serves only /healthz, not the statistics endpoints.
func runAPIServerOnly(port int) {
	fmt.Printf("arm64jit stats API listening on :%d (no guest loaded)\n", port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	var shutdownOnce sync.Once
	performShutdown := func() {
		shutdownOnce.Do(func() {
			fmt.Println("\nShutting down stats API server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		})
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	performShutdown()
}

func printHelp() {
	fmt.Printf(`arm64jit %s

Usage: arm64jit [options] <flat-image>
       arm64jit -api-server [-port N]

Options:
  -help              Show this help message
  -version           Show version information
  -api-server        Start stats-only HTTP API server (no image required)
  -port N            Stats API server port (default: config's dispatch.stats_port)
  -tui               Show a live TUI stats dashboard while running
  -gui               Show a windowed stats viewer while running
  -load-addr ADDR    Guest address the image is mapped at (default: 0x%x)
  -entry-offset OFF  Entry point offset from load-addr (default: 0)
  -config FILE       Config file path (default: platform config dir)
  -verbose           Enable verbose output

Examples:
  # Run a flat ARM64 image
  arm64jit program.bin

  # Run with a non-default entry offset and a live dashboard
  arm64jit -entry-offset 0x40 -tui program.bin

  # Start just the stats API server, e.g. for a GUI front end to poll
  arm64jit -api-server -port 7701
`, Version, defaultLoadAddr)
}
