// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/campusbot/onboard/internal/config"
	"github.com/campusbot/onboard/internal/server"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "onboard",
		Usage:   "Onboard new community members with email verification and self-service roles",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "refresh-roles",
				Usage:  "Rescan guild roles against the catalog",
				Action: server.Admin,
			},
			{
				Name:   "sync-permissions",
				Usage:  "Hide every channel except the welcome channel from the base role",
				Action: server.Admin,
			},
			{
				Name:      "test-email",
				Usage:     "Send a test verification email",
				ArgsUsage: "<address>",
				Action:    server.TestEmail,
			},
			{
				Name:   "sweep",
				Usage:  "Remove expired codes and stale setup sessions",
				Action: server.Admin,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
