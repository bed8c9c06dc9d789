package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgecms/forge/internal/config"
	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/schema"
)

var schemaFlags struct {
	configPath string
	output     string
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Compile the relational schema",
	Long:  "Compile the registered model definitions into a relational schema document",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(schemaFlags.configPath)
		if err != nil {
			return err
		}

		registry, err := model.LoadDir(cfg.Models.Dir, nil)
		if err != nil {
			return fmt.Errorf("loading models: %w", err)
		}

		provider := cfg.Database.Provider
		if provider == "memory" {
			provider = "postgres"
		}
		text, err := schema.NewCompiler(registry).Compile(provider)
		if err != nil {
			return err
		}

		if schemaFlags.output != "" {
			if err := os.WriteFile(schemaFlags.output, []byte(text), 0644); err != nil {
				return fmt.Errorf("writing schema: %w", err)
			}
			fmt.Printf("Schema written to %s\n", schemaFlags.output)
			return nil
		}
		fmt.Print(text)
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFlags.configPath, "config", "c", "", "path to config file")
	schemaCmd.Flags().StringVarP(&schemaFlags.output, "output", "o", "", "write schema to file instead of stdout")
}
