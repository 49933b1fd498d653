package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chime/internal/config"
)

// initCmd walks the operator through an interactive form and writes a
// starter configuration file.
func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", out)
			}

			cfg := &config.Config{Version: "1"}
			cfg.Defaults()

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Database path").
						Description("SQLite file holding definitions and history").
						Value(&cfg.Storage.Path),
					huh.NewInput().
						Title("HTTP bind address").
						Value(&cfg.Server.Bind),
					huh.NewInput().
						Title("Admin bearer token").
						Description("Leave empty to disable the admin API").
						Value(&cfg.Server.Auth.BearerToken),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("Message endpoint URL").
						Description("Receives template-message deliveries").
						Value(&cfg.Notify.MessageURL),
					huh.NewInput().
						Title("Monitor endpoint URL").
						Description("Receives service health probes").
						Value(&cfg.Notify.MonitorURL),
					huh.NewSelect[string]().
						Title("Log level").
						Options(huh.NewOptions("debug", "info", "warn", "error")...).
						Value(&cfg.Log.Level),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			if err := config.Validate(cfg); err != nil {
				return err
			}

			raw, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding configuration: %w", err)
			}
			if err := os.WriteFile(out, raw, 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "chime.yaml", "Where to write the configuration")
	return cmd
}
