package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/cli"
	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/db"
	"github.com/kitchenops/checklists/internal/services"
)

func main() {
	cfg := config.Load()
	config.SetLogLevel(cfg.LogLevel)
	services.SetLocation(cfg.Timezone)

	open := func() (*gorm.DB, error) {
		if err := db.Init(cfg); err != nil {
			return nil, err
		}
		return db.Conn(), nil
	}

	rootCmd := &cobra.Command{
		Use:          "checklistctl",
		Short:        "Operate checklist templates and daily instances",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(cli.GenerateCmd(open))
	rootCmd.AddCommand(cli.CloneCmd(open))
	rootCmd.AddCommand(cli.ListCmd(open))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
