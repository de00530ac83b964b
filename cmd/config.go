package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/hostpulse/internal/conf"
)

func newConfigCommand(cfgFile *string) *cobra.Command {
	config := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%d hosts, database %s)\n",
				len(settings.Hosts), settings.Database.Type)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(*cfgFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(settings.Masked()); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	config.AddCommand(check, show)
	return config
}
