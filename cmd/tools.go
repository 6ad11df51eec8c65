package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tellergate/tellergate/internal/tools"
)

var toolsCategory string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the banking tool catalog",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().StringVarP(&toolsCategory, "category", "c", "", "Only show tools in this category")
}

func runTools(_ *cobra.Command, _ []string) error {
	reg, err := tools.NewRegistry(tools.Catalog())
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	for _, cat := range reg.Categories() {
		if toolsCategory != "" && cat.Name != toolsCategory {
			continue
		}
		fmt.Printf("%s (%d)\n", cat.Name, cat.Count)
		for def := range reg.List(cat.Name) {
			fmt.Printf("  %-28s %s\n", def.Name, def.Description)
			for _, p := range def.UserParams() {
				fmt.Printf("    - %s (%s)\n", p.Name, p.Type)
			}
		}
		fmt.Println()
	}
	return nil
}
