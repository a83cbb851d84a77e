package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/cashflow/internal/config"
	"github.com/cleared-dev/cashflow/internal/gitops"
)

func newInitCommand() *cobra.Command {
	var name string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new cashflow workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			hash, err := runInit(absDir, name, !noGit)
			if err != nil {
				return err
			}
			if hash != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized cashflow workspace at %s (%s)\n", absDir, hash)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized cashflow workspace at %s\n", absDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "skip git initialization")

	return cmd
}

// runInit lays out a workspace and returns the initial commit hash, if any.
func runInit(dir, name string, withGit bool) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return "", fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	dirs := []string{
		"logs",
		"reports",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(name)
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}

	gitignore := "cashflow.db\ncashflow.db-*\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return "", fmt.Errorf("writing .gitignore: %w", err)
	}
	for _, keep := range []string{"import", "reports", "logs"} {
		if err := os.WriteFile(filepath.Join(dir, keep, ".gitkeep"), []byte{}, 0o644); err != nil {
			return "", fmt.Errorf("writing .gitkeep: %w", err)
		}
	}

	if !withGit {
		return "", nil
	}
	if err := gitops.Init(dir); err != nil {
		return "", fmt.Errorf("git init: %w", err)
	}
	hash, err := gitops.CommitAll(dir, "init: Initialize "+name, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	return hash, nil
}
