package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/prodbuild/cmd/prodbuild/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Resolve commands.ResolveCmd `cmd:"" help:"Print the resolved build configuration"`
		Build   commands.BuildCmd   `cmd:"" help:"Build production assets"`
		Serve   commands.ServeCmd   `cmd:"" help:"Preview a production build"`
		Debug   bool                `help:"Enable debug mode." env:"PRODBUILD_DEBUG"`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("prodbuild"),
		kong.Description("Production bundling driven by layered build profiles."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
