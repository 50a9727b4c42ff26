package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/obs"
	"github.com/modelgate/modelgate/internal/optimization"
	"github.com/modelgate/modelgate/internal/server"
	"github.com/modelgate/modelgate/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "modelgate",
	Short: "ModelGate - optimization-rule matching engine for LLM request routing",
	Long: `ModelGate decides which downstream model an LLM request should route to.
Optimization rules are scoped to organizations and teams and evaluated
against each request's token count and tool usage; the first fully-matching
rule group selects the target model.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			logrus.SetLevel(logrus.TraceLevel)
		}
	},
}

// Build information variables
var (
	// Set by compiler via -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"

	// Global configuration directory flag
	configDir string
)

func loadConfig() (*config.Config, error) {
	dir := configDir
	if dir == "" {
		var err error
		dir, err = config.DefaultConfigDir()
		if err != nil {
			return nil, err
		}
	}
	return config.Load(dir)
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.StringVar(&configDir, "config-dir", "", "configuration directory (default: ~/.modelgate)")
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ModelGate\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Git Commit: %s\n", gitCommit)
			fmt.Printf("Build Time: %s\n", buildTime)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(rulesCommand())
}

func serveCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the routing decision server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := obs.Setup(&cfg.Log); err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}

			st, err := store.Open(store.DefaultConfig(cfg.Database.Path))
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(cfg, st)

			watcher, err := config.NewWatcher(cfg)
			if err != nil {
				return err
			}
			watcher.AddCallback(srv.ApplyConfig)
			if err := watcher.Start(); err != nil {
				logrus.WithError(err).Warn("Config hot reload unavailable")
			} else {
				defer watcher.Stop()
			}

			if port <= 0 {
				port = cfg.Server.Port
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(port)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logrus.WithField("signal", sig.String()).Info("Shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return srv.Stop(ctx)
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}

func rulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect optimization rules",
	}

	var org string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all rules visible to an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			st, err := store.Open(store.DefaultConfig(cfg.Database.Path))
			if err != nil {
				return err
			}
			defer st.Close()

			rules, err := st.Rules.ListForOrganization(org)
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				fmt.Println("No rules configured.")
				return nil
			}

			for _, rule := range rules {
				fmt.Printf("%s  %s/%s  %s  %s -> %s  %s\n",
					rule.ID, rule.EntityType, rule.EntityID, rule.Provider,
					describeConditions(rule), rule.TargetModel, enabledMark(rule.Enabled))
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&org, "org", "", "organization UUID")
	_ = listCmd.MarkFlagRequired("org")

	cmd.AddCommand(listCmd)
	return cmd
}

func describeConditions(rule optimization.Rule) string {
	switch cond := rule.Conditions.(type) {
	case optimization.ContentLengthConditions:
		return fmt.Sprintf("tokens<=%d", cond.MaxLength)
	case optimization.ToolPresenceConditions:
		return fmt.Sprintf("tools=%t", cond.HasTools)
	default:
		return string(rule.RuleType)
	}
}

func enabledMark(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
