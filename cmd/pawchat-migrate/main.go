package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pawkit/pawchat/internal/backend"
	"github.com/pawkit/pawchat/internal/config"
	"github.com/pawkit/pawchat/internal/session"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	dsnFlag := flag.String("dsn", "", "Postgres DSN (overrides profile backend_dsn)")
	flag.Parse()

	dsn := *dsnFlag
	if dsn == "" {
		profileName := session.Resolve(*profileFlag)
		if err := session.ValidateName(profileName); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		profile, err := config.LoadProfile(session.ProfilePath(profileName))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		dsn = profile.BackendDSN
	}

	client, err := backend.Open(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	result, err := client.Migrate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	if result.Changed {
		fmt.Printf("migrations applied, schema at version %d\n", result.Version)
	} else {
		fmt.Printf("schema up to date at version %d\n", result.Version)
	}
	if result.Dirty {
		fmt.Fprintln(os.Stderr, "warning: schema is dirty, manual intervention required")
		os.Exit(1)
	}
}
