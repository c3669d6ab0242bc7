// cmd/kaikactl/catalog.go
package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/services"
	"github.com/yusukekikuta0509/projectKAIKA/internal/storage"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the feeling catalog",
		Long: `List feelings with price and starting ownership.

Examples:
  kaikactl catalog
  kaikactl catalog --category abstract
  kaikactl catalog --file data/catalog.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			rawCategory, _ := cmd.Flags().GetString("category")

			category, ok := models.ParseCategory(rawCategory)
			if !ok {
				return fmt.Errorf("unknown category %q", rawCategory)
			}

			catalog, err := loadCatalog(file)
			if err != nil {
				return err
			}

			var feelings []models.Feeling
			for _, f := range catalog.Feelings() {
				if category == models.CategoryAll || f.Category == category {
					feelings = append(feelings, f)
				}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), feelings)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tOWNED\tINTENSITY")
			for _, f := range feelings {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s USDC\t%t\t%d\n", f.ID, f.Name, f.Category, f.Price, f.Owned, f.Intensity)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("file", "", "Catalog JSON file (built-in catalog when empty)")
	cmd.Flags().String("category", "all", "Category filter: all, nature, urban or abstract")
	return cmd
}

func loadCatalog(file string) (*services.CatalogService, error) {
	if file == "" {
		return services.NewCatalogService(nil, "")
	}
	store, err := storage.NewFileStorage(filepath.Dir(file), nil)
	if err != nil {
		return nil, err
	}
	return services.NewCatalogService(store, filepath.Base(file))
}
