// main.go
package main

import (
	"embed"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/petervdpas/mailshell/internal/accounts"
	"github.com/petervdpas/mailshell/internal/config"

	"github.com/pterm/pterm"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	showHelp   = flag.Bool("h", false, "Show help")
	version    = flag.Bool("version", false, "Show version")
	configPath = flag.String("config", "", "Config file (default: <user config dir>/mailshell/config.json)")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Mailshell v%s\n", appVersion)
		return
	}

	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()

	// No arguments - run desktop UI
	if len(args) == 0 {
		runDesktopApp(resolveConfigPath(*configPath))
		return
	}

	switch command := args[0]; command {
	case "check":
		path := resolveConfigPath(*configPath)
		if len(args) > 1 {
			path = args[1]
		}
		os.Exit(runCheck(path))

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		fmt.Fprintln(os.Stderr)
		showUsage()
		os.Exit(1)
	}
}

func resolveConfigPath(p string) string {
	if p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mailshell.json"
	}
	return filepath.Join(dir, "mailshell", "config.json")
}

func runDesktopApp(cfgPath string) {
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if created {
		log.Printf("Wrote default config to %s", cfgPath)
	}

	app, err := NewApp(cfgPath, cfg)
	if err != nil {
		log.Fatalf("Failed to set up: %v", err)
	}

	bg, _ := config.ParseColor(cfg.Window.Background)

	err = wails.Run(&options.App{
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,

		// Shown once the first surface can be placed.
		StartHidden:      true,
		BackgroundColour: &options.RGBA{R: bg[0], G: bg[1], B: bg[2], A: 255},

		AssetServer: &assetserver.Options{
			Assets:  assets,
			Handler: app.iconHandler(),
		},

		OnStartup:  app.startup,
		OnDomReady: app.domReady,
		OnShutdown: app.shutdown,
		Bind:       []any{app},
	})
	if err != nil {
		log.Fatal(err)
	}
}

// runCheck validates a config file and prints the accounts it defines.
func runCheck(path string) int {
	cfg, err := config.Load(path)
	if err != nil {
		pterm.Error.Printf("%s: %v\n", path, err)
		return 1
	}
	reg, err := accounts.FromConfig(cfg)
	if err != nil {
		pterm.Error.Printf("%s: %v\n", path, err)
		return 1
	}

	rows := pterm.TableData{{"#", "Name", "Partition", "Address", "Domains"}}
	for i, d := range reg.All() {
		rows = append(rows, []string{
			strconv.Itoa(i),
			d.Name,
			d.Partition(),
			d.Address,
			d.Policy.ServiceDomain + ", " + d.Policy.AuthDomain,
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	t := cfg.Timing
	fmt.Printf("Reload after %s, fresh load after %s, sweep every %s for views older than %s\n",
		t.ReloadAfter(), t.FreshLoadAfter(), t.SweepInterval(), t.SweepStale())
	if cfg.Control.Addr != "" {
		fmt.Printf("Control bridge: %s\n", cfg.Control.Addr)
	}
	pterm.Success.Printf("%s is valid\n", path)
	return 0
}

func showUsage() {
	fmt.Println("Mailshell - one window, several mail accounts")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mailshell [options]            Run desktop application (default)")
	fmt.Println("  mailshell check [config]       Validate a config file and list its accounts")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -config <file>  Config file to use")
	fmt.Println("                  (default: <user config dir>/mailshell/config.json)")
	fmt.Println("  -h              Show this help message")
	fmt.Println("  -version        Show version information")
	fmt.Println()
	fmt.Println("The config file is created with two example accounts on first run.")
	fmt.Println("Timing changes are picked up while the app runs; account changes need a restart.")
}
