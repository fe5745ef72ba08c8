package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zsprackett/tunedeck/internal/app"
	"github.com/zsprackett/tunedeck/internal/applog"
	"github.com/zsprackett/tunedeck/internal/config"
	"github.com/zsprackett/tunedeck/internal/ipc"
	"github.com/zsprackett/tunedeck/internal/remote"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	loadConfig := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg, nil
	}

	cmd := &cobra.Command{
		Use:           "tunedeck",
		Short:         "A terminal remote for your music daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Remote.Enabled {
				if err := config.EnsureJWTSecret(configPath, &cfg); err != nil {
					fmt.Fprintf(os.Stderr, "warning: could not persist JWT secret: %v\n", err)
				}
			}

			logger, logCloser, err := applog.Init(applog.InitConfig{
				LogDir:   cfg.LogDir,
				LogLevel: cfg.LogLevel,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
				logger = slog.Default()
			} else {
				defer logCloser.Close()
			}
			logger.Info("starting", "config", configPath, "level", applog.LevelName(applog.ParseLevel(cfg.LogLevel)))

			a, err := app.New(cfg, logger)
			if err != nil {
				logger.Error("startup failed", "err", err)
				return err
			}
			a.Run()
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to the config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	sendCmd := &cobra.Command{
		Use:   "send <command...>",
		Short: "Send a command to the running instance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := ipc.Send(cmd.Context(), cfg.SocketPath(), strings.Join(args, " "), 2*time.Second)
			if err != nil {
				return err
			}
			if st == nil {
				return nil
			}
			if st.Playable != nil {
				fmt.Printf("%s: %s\n", st.Mode, st.Playable.Display())
			} else {
				fmt.Println(st.Mode)
			}
			return nil
		},
	}

	passwdCmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set the login for the remote control server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			username := args[0]
			fmt.Printf("New password for %s: ", username)
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return err
			}
			if len(pw) == 0 {
				return fmt.Errorf("empty password")
			}
			hash, err := remote.HashPassword(pw)
			if err != nil {
				return err
			}
			cfg.Remote.Username = username
			cfg.Remote.PasswordHash = hash
			if err := config.Save(configPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Password updated: %s\n", username)
			return nil
		},
	}

	var discoverWait time.Duration
	remotesCmd := &cobra.Command{
		Use:   "remotes",
		Short: "List tunedeck instances announced on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := remote.Discover(cmd.Context(), discoverWait)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Println("no instances found")
				return nil
			}
			for _, inst := range found {
				fmt.Printf("%s\t%s\n", inst.Name, inst.URL())
			}
			return nil
		},
	}
	remotesCmd.Flags().DurationVar(&discoverWait, "wait", 3*time.Second, "How long to browse")

	cmd.AddCommand(sendCmd, passwdCmd, remotesCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
