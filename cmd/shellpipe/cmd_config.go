package main

import (
	"fmt"
	"io"

	"github.com/julianknutsen/shellpipe/internal/config"
	"github.com/julianknutsen/shellpipe/internal/fsys"
	"github.com/spf13/cobra"
)

func newConfigCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create shellpipe.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigShowCmd(stdout, stderr), newConfigInitCmd(stdout, stderr))
	return cmd
}

func newConfigShowCmd(stdout, stderr io.Writer) *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Long: `Print the effective configuration as TOML: the config file layered
over the built-in defaults. Use --validate to check the file without
printing it.`,
		Example: `  shellpipe config show
  shellpipe config show --validate`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if doConfigShow(validate, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "validate config and exit (0 = valid, 1 = errors)")
	return cmd
}

func doConfigShow(validate bool, stdout, stderr io.Writer) int {
	cfg, path, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe config show: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if validate {
		fmt.Fprintln(stdout, "Config valid.") //nolint:errcheck // best-effort stdout
		return 0
	}
	data, err := cfg.Marshal()
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe config show: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if rev := config.Revision(fsys.OSFS{}, path); rev != "" {
		fmt.Fprintf(stdout, "# %s (revision %s)\n", path, rev) //nolint:errcheck // best-effort stdout
	} else {
		fmt.Fprintln(stdout, "# built-in defaults") //nolint:errcheck // best-effort stdout
	}
	stdout.Write(data) //nolint:errcheck // best-effort stdout
	return 0
}

func newConfigInitCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default shellpipe.toml",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := config.Path(configFlag)
			if err := config.WriteDefault(fsys.OSFS{}, path); err != nil {
				fmt.Fprintf(stderr, "shellpipe config init: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			fmt.Fprintf(stdout, "Wrote %s\n", path) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
}
