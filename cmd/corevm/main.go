// corevm CLI - exercises the dispatch core against a small class hierarchy
// and reports what the sites learned.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/corevm/manifest"
	"github.com/chazu/corevm/vm"
)

func main() {
	verbose := flag.Int("v", -1, "Log verbosity (overrides corevm.toml)")
	configDir := flag.String("config", "", "Directory to search for corevm.toml (default: current directory)")
	iterations := flag.Int("n", 1000, "Calls per dispatch site")
	envFiles := flag.String("env", "", "Comma-separated .env files to load into the environment")
	statsOut := flag.String("stats-out", "", "Write site statistics as CBOR to this file")
	dumpScope := flag.Bool("dump-scope", false, "Print the eval binding's scope chain")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: corevm [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a polymorphic workload through dispatch, yield and cached-value sites.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  corevm -n 10000            # Run the workload 10000 times per site\n")
		fmt.Fprintf(os.Stderr, "  corevm -v 2 -dump-scope    # Debug logging, print scope chain\n")
		fmt.Fprintf(os.Stderr, "  corevm -env .env -stats-out stats.cbor\n")
	}
	flag.Parse()

	m, err := loadManifest(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := m.Verbosity()
	if *verbose >= 0 {
		verbosity = *verbose
	}
	commonlog.Configure(verbosity, nil)

	env := vm.ProcessEnvironment()
	if *envFiles != "" {
		if err := env.LoadDotenv(strings.Split(*envFiles, ",")...); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	w := newWorkload(m.SiteConfig(), env)
	if err := w.run(*iterations); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w.report(os.Stdout)
	if *dumpScope {
		fmt.Println()
		fmt.Println(w.binding)
	}

	if *statsOut != "" {
		data, err := vm.MarshalSiteStats(w.stats())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding stats: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*statsOut, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *statsOut, err)
			os.Exit(1)
		}
	}
}

// loadManifest finds corevm.toml from dir upward, falling back to defaults.
func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(abs)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}
