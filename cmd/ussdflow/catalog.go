package main

import (
	"fmt"

	"github.com/aretw0/ussdflow/internal/cli"
	"github.com/aretw0/ussdflow/internal/flows"
	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/aretw0/ussdflow/pkg/guard"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the localization catalog",
}

var catalogLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check templates and language coverage",
	Long: `Parses every template, reports unknown formatter tags, flow messages no
language can serve and keys a language lacks (served from the fallback).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")

		c, err := loadCatalog()
		if err != nil {
			return err
		}
		langs, err := guard.NewLanguageSet(cfg.Languages.Enabled, cfg.Languages.Fallback, cfg.Languages.FallbackSelectable)
		if err != nil {
			return err
		}
		table := flows.Table(flows.Config{
			Languages: langs,
			MinAmount: cfg.Wallet.MinAmount,
			MaxAmount: cfg.Wallet.MaxAmount,
		})

		issues := cli.LintCatalog(c, cli.LintOptions{
			Languages: langs.Options(),
			Fallback:  langs.Fallback(),
			Table:     table,
		})

		out := cmd.OutOrStdout()
		var errs, warns int
		for _, issue := range issues {
			fmt.Fprintln(out, issue)
			if issue.Severity == cli.SeverityError {
				errs++
			} else {
				warns++
			}
		}
		fmt.Fprintf(out, "%d error(s), %d warning(s) across %v\n", errs, warns, c.Languages())

		if errs > 0 || (strict && warns > 0) {
			return fmt.Errorf("catalog lint failed")
		}
		return nil
	},
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.CatalogDir != "" {
		return catalog.LoadDir(cfg.CatalogDir)
	}
	return flows.Catalog()
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogLintCmd)
	catalogLintCmd.Flags().Bool("strict", false, "Fail on warnings too")
}
