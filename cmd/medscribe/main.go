// Command medscribe turns clinical conversation transcripts into structured
// notes. "medscribe serve" runs the HTTP, WebSocket and Kafka service;
// "medscribe note" processes transcript files offline.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/medscribe/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "medscribe: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "medscribe",
		Short: "Clinical conversation comprehension and note generation",
		Long: `medscribe reads doctor-patient conversation transcripts, extracts the
clinical facts they contain and writes a structured note with quality metrics.

Examples:
  medscribe serve --config medscribe.yaml
  medscribe note visit.txt
  medscribe note --metrics visit-1.txt visit-2.txt`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "medscribe.yaml", "path to the YAML configuration file")

	cmd.AddCommand(newServeCmd(opts), newNoteCmd(opts))
	return cmd
}

// loadConfig reads the configuration file. A missing file is not an error
// unless the path was given explicitly; the defaults are used instead.
// found reports whether a file was read.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (cfg *config.Config, found bool, err error) {
	cfg, err = config.Load(opts.configPath)
	switch {
	case err == nil:
		return cfg, true, nil
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		def := config.Config{}.WithDefaults()
		return &def, false, nil
	}
	return nil, false, err
}
