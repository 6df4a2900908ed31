// simepctl is the operator CLI: backup export/import and storage
// reset against the same storage the server uses.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adityarw/simep/internal/config"
	"github.com/adityarw/simep/internal/storage"
	"github.com/adityarw/simep/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "simepctl",
	Short: "Operator tooling for the SIMEP evaluation server",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// openStore wires storage the same way the server does, honoring the
// SIMEP_* environment.
func openStore() (*store.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	blob, err := storage.Open(storage.Driver(cfg.Storage.Driver), cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return store.New(blob, log), func() { _ = blob.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
