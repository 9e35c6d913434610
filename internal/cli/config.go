package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/util/logredact"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage taskwire configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file location",
	Run:   runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Secrets never reach stdout in the clear.
	shown := *cfg
	if shown.Auth.AccessToken != "" {
		shown.Auth.AccessToken = logredact.Token(shown.Auth.AccessToken)
	}

	data, err := yaml.Marshal(shown)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	fmt.Println("# Effective configuration (file + TASKWIRE_* env + defaults)")
	os.Stdout.Write(data)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	fmt.Println(path)
}
