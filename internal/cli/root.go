// Package cli defines the taskwire command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/auth"
	"github.com/taskwire/taskwire/internal/cache"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/pkg/logger"
	"github.com/taskwire/taskwire/internal/transport"
)

var (
	cfgFile    string
	verbose    bool
	outputMode string
	noCache    bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "taskwire",
		Short: "Taskwire - manage projects and tasks from the terminal",
		Long: `Taskwire is a client for the Taskwire task-management API.

Reads go through a local two-tier cache so repeated commands are fast and
recent data stays available when the API is unreachable; writes always go
to the API and invalidate the affected cache entries.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.taskwire/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputMode, "output", "o", "", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Bypass the cache and always hit the API")
}

func setup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if outputMode != "" {
		loaded.Output = outputMode
	}

	level := loaded.Log.Level
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logger.InitOptions{
		Level:   level,
		Format:  loaded.Log.Format,
		AppName: "taskwire",
		Output: logger.OutputOptions{
			ToStderr: true,
			ToFile:   loaded.Log.ToFile,
			FilePath: loaded.Log.FilePath,
		},
	}); err != nil {
		return err
	}

	cfg = loaded
	return nil
}

// Execute runs the command tree and returns the terminal error, already
// logged, for exit-code mapping in main.
func Execute() error {
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)

	err := rootCmd.Execute()
	logger.Sync()
	return err
}

func credentialStore() *auth.Store {
	return auth.NewStore(cfg.Auth.TokenPath)
}

func oauthConfig() auth.OAuthConfig {
	return auth.OAuthConfig{
		ClientID:     cfg.Auth.ClientID,
		AuthorizeURL: cfg.Auth.AuthorizeURL,
		TokenURL:     cfg.Auth.TokenURL,
		Scopes:       cfg.Auth.Scopes,
		RedirectPort: cfg.Auth.RedirectPort,
	}
}

func openCache() (*cache.Cache, error) {
	return cache.New(cache.Options{
		Dir:          cfg.Cache.Dir,
		DefaultTTL:   cfg.Cache.TasksTTL(),
		StaleIfError: cfg.Cache.StaleIfError(),
		MaxEntries:   int64(cfg.Cache.MaxMemoryEntries),
	})
}

// apiClient wires the full access layer: token source feeding the transport,
// transport feeding the cache-backed API client.
func apiClient() (*api.Client, error) {
	source := auth.NewTokenSource(cfg.Auth.AccessToken, credentialStore(), auth.NewOAuthClient(oauthConfig()))
	tc, err := transport.New(transport.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout(),
		Retries: cfg.API.Retries,
		Token:   source.Token,
	})
	if err != nil {
		return nil, err
	}
	rc, err := openCache()
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		Transport:    tc,
		Cache:        rc,
		ProjectsTTL:  cfg.Cache.ProjectsTTL(),
		TasksTTL:     cfg.Cache.TasksTTL(),
		StaleIfError: cfg.Cache.StaleIfError(),
		NoCache:      noCache,
	})
}
