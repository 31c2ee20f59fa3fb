package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pawkit/pawchat/internal/app"
	"github.com/pawkit/pawchat/internal/session"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := session.Resolve(*profileFlag)
	if err := session.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{ProfileName: profileName}),
		fx.NopLogger,
	).Run()
}
