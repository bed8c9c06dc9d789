package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new <project-name>",
	Short: "Create a new forge project",
	Long:  "Create a new forge project with a config file and a sample model definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectName := args[0]

		if strings.TrimSpace(projectName) == "" {
			return fmt.Errorf("project name cannot be empty")
		}
		if strings.ContainsAny(projectName, "/\\") || strings.Contains(projectName, "..") {
			return fmt.Errorf("project name cannot contain path separators")
		}
		if strings.HasPrefix(projectName, ".") {
			return fmt.Errorf("project name cannot start with '.'")
		}

		projectPath := filepath.Join(".", projectName)
		if _, err := os.Stat(projectPath); err == nil {
			return fmt.Errorf("directory %s already exists", projectName)
		}

		answers := struct {
			Provider   string
			SoftDelete bool
		}{}
		questions := []*survey.Question{
			{
				Name: "provider",
				Prompt: &survey.Select{
					Message: "Database provider:",
					Options: []string{"memory", "postgres", "sqlite"},
					Default: "memory",
				},
			},
			{
				Name: "softDelete",
				Prompt: &survey.Confirm{
					Message: "Enable soft delete on the sample model?",
					Default: true,
				},
			},
		}
		if err := survey.Ask(questions, &answers); err != nil {
			return err
		}

		for _, dir := range []string{projectPath, filepath.Join(projectPath, "models")} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}

		configContent := fmt.Sprintf(`server:
  host: 0.0.0.0
  port: 8080

database:
  provider: %s
  url: ""

models:
  dir: models
`, answers.Provider)
		if err := os.WriteFile(filepath.Join(projectPath, "forge.yaml"), []byte(configContent), 0644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		sampleModel := fmt.Sprintf(`{
  "name": "Article",
  "softDelete": %t,
  "draftPublish": true,
  "fields": [
    {"name": "title", "type": "String", "validation": {"maxLength": 200}},
    {"name": "body", "type": "String", "required": false},
    {"name": "category", "type": "Enum", "values": ["NEWS", "OPINION", "REVIEW"], "required": false}
  ]
}
`, answers.SoftDelete)
		if err := os.WriteFile(filepath.Join(projectPath, "models", "article.json"), []byte(sampleModel), 0644); err != nil {
			return fmt.Errorf("failed to write sample model: %w", err)
		}

		green := color.New(color.FgGreen, color.Bold)
		green.Printf("\n✓ Created project: %s\n\n", projectName)
		fmt.Println("Get started:")
		fmt.Printf("  cd %s\n", projectName)
		fmt.Println("  forge schema")
		fmt.Println("  forge serve --memory")
		fmt.Println()
		return nil
	},
}
