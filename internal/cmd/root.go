// Package cmd implements the servo command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Komrod/web-servo/app"
	"github.com/Komrod/web-servo/script"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// AppName is the name of the binary.
const AppName = "servo"

// Version is set at build time with -ldflags "-X github.com/Komrod/web-servo/internal/cmd.Version=...".
var Version = "dev"

type options struct {
	configPath string
	port       int
	dir        string
	console    io.Writer
}

// NewRootCmd creates the root command. Without a sub command it serves.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{})
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: "Serve static files and per-request scripts",
		Long: fmt.Sprintf(`%s - a small web server

Files below the WWW directory are served as is. Files with the script extension are loaded fresh on every
request and their result becomes the response body.
`, AppName),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to configuration file (default "+app.DefaultConfigFile+" if present)")
	addServeFlags(rootCmd, opts)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	addServeFlags(serveCmd, opts)

	checkCmd := &cobra.Command{
		Use:   "check <script>...",
		Short: "Report syntax problems in script files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", AppName, Version)
		},
	}

	rootCmd.AddCommand(serveCmd, checkCmd, versionCmd)

	return rootCmd
}

func addServeFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (overrides configuration)")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "WWW directory (overrides configuration)")
}

func loadConfig(opts *options) (*app.Config, error) {
	cfg, err := app.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.port != 0 {
		cfg.Server.Port = app.Port(opts.port)
	}

	if opts.dir != "" {
		cfg.Server.Dir = opts.dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	var appOpts []app.Option
	if opts.console != nil {
		appOpts = append(appOpts, app.WithConsole(opts.console))
	}

	srv := app.NewApp(cfg, appOpts...)
	if err := srv.Err(); err != nil {
		return errors.Wrap(err, "build server")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

func runCheck(cmd *cobra.Command, opts *options, files []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, closeFn, err := app.OpenEngine(ctx, cfg.Page.Engine)
	if err != nil {
		return err
	}

	if closeFn != nil {
		defer func() { _ = closeFn(context.WithoutCancel(ctx)) }()
	}

	diag, ok := eng.(script.Diagnoser)
	if !ok {
		return errors.Newf("the %s engine cannot check scripts", eng.Name())
	}

	out := cmd.OutOrStdout()
	red, green := color.New(color.FgRed), color.New(color.FgGreen)

	var failed int
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return errors.Wrapf(err, "resolve %q", file)
		}

		lines, err := diag.Diagnose(ctx, abs)
		if err != nil {
			return errors.Wrapf(err, "check %q", file)
		}

		if len(lines) == 0 {
			_, _ = green.Fprintf(out, "%s: ok\n", file)
			continue
		}

		failed++
		for _, line := range lines {
			_, _ = red.Fprintf(out, "%s: %s\n", file, line)
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d scripts have problems", failed, len(files))
	}

	return nil
}
