// Command scaler pre-scales the image folders once and prints a summary.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/matt-g-everett/shuffler/assets"
	"github.com/matt-g-everett/shuffler/stream"
	"gopkg.in/yaml.v2"
)

func readConfig(path string) stream.Config {
	var c stream.Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &c); err != nil {
			log.Fatalf("Bad config %s: %v", path, err)
		}
	}
	return c.WithDefaults()
}

func main() {
	configPath := flag.String("config", "config.yaml", "YAML config file.")
	maxHeight := flag.Int("max-height", 0, "Override the configured maximum height.")
	cleanup := flag.Bool("cleanup", true, "Remove scaled images whose original is gone.")
	flag.Parse()

	cfg := readConfig(*configPath)
	if *maxHeight > 0 {
		cfg.Assets.MaxHeight = *maxHeight
	}

	folders := flag.Args()
	if len(folders) == 0 {
		folders = []string{"images", "images2"}
	}

	home, _ := os.UserHomeDir()
	lister := assets.NewLister(cfg.Assets.Root, home)

	failed := false
	for _, folder := range folders {
		p := assets.NewProcessor(lister, folder, cfg.Assets.MaxHeight, cfg.Assets.Workers)
		result, err := p.ScanAndProcess()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", folder, err)
			failed = true
			continue
		}
		stats := p.Stats()

		fmt.Printf("\nProcessing summary for %s:\n", folder)
		fmt.Printf("   Total images: %d\n", result.Total)
		fmt.Printf("   Processed: %d\n", result.Processed)
		fmt.Printf("   Skipped: %d\n", result.Skipped)
		fmt.Printf("   Failed: %d\n", result.Failed)
		fmt.Printf("   Total processed files: %d\n", stats.ProcessedCount)
		fmt.Printf("   Storage saved: %s (avg %.1f%%)\n", assets.FormatBytes(stats.TotalSaved), stats.AvgSavingPercent)

		if *cleanup {
			n, err := p.CleanupOrphaned()
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s cleanup: %v\n", folder, err)
			} else if n > 0 {
				fmt.Printf("   Orphans removed: %d\n", n)
			}
		}
		if result.Failed > 0 {
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
}
