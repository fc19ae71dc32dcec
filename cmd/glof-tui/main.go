package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/couchcryptid/glof-monitor/internal/domain"
	"github.com/couchcryptid/glof-monitor/internal/tui"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

func main() {
	api := flag.String("api", sharedcfg.EnvOrDefault("GLOF_API", "http://localhost:8080"), "base URL of the glof server")
	catalogPath := flag.String("catalog", os.Getenv("CATALOG_PATH"), "catalog YAML overriding the built-in tables")
	refresh := flag.Duration("refresh", time.Minute, "gage refresh interval, 0 to disable")
	flag.Parse()

	catalog := domain.DefaultCatalog()
	if *catalogPath != "" {
		var err error
		catalog, err = domain.LoadCatalog(*catalogPath)
		if err != nil {
			fmt.Printf("Error loading catalog: %v\n", err)
			os.Exit(1)
		}
	}

	client := tui.NewAPIClient(*api, 10*time.Second)
	p := tea.NewProgram(tui.NewModel(client, catalog, *refresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running application: %v\n", err)
		os.Exit(1)
	}
}
