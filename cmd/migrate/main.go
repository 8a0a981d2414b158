// migrate applies the embedded SQL migrations using the same configuration as the API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/noah-isme/taxdesk-api/pkg/config"
	"github.com/noah-isme/taxdesk-api/pkg/database"
)

func main() {
	direction := flag.String("direction", database.DirectionUp, "Migration direction: up or down")
	steps := flag.Int("steps", 0, "Number of migrations to apply, 0 applies all")
	list := flag.Bool("list", false, "List embedded migrations and exit")
	flag.Parse()

	if *list {
		names, err := database.MigrationNames()
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrations:", err)
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := database.Migrate(cfg.Database.URL(), *direction, *steps); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("migrations %s complete\n", *direction)
}
