package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reeldeck/reeldeck/internal/config"
	"github.com/reeldeck/reeldeck/internal/errors"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default reeldeck.json",
		Long: `Write a reeldeck.json with default settings into the given
directory (default: current directory). Edit it afterwards to point at
your storage backend and identity provider.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing reeldeck.json")

	return cmd
}

func runInit(dir string, force bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.New("E110").Wrap(err)
	}

	path := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Newf(errors.CategoryCLI, "%s already exists", path).
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	if err := cfg.SaveTo(path); err != nil {
		return err
	}

	success("wrote %s", path)
	info("edit it to configure storage, identity, and the catalog API key")
	info("then run: reeldeck serve --config %s", path)
	return nil
}
