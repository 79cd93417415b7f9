package main

import (
	"fmt"

	"github.com/aretw0/amrviz/internal/storage"
	"github.com/spf13/cobra"
)

var solversCmd = &cobra.Command{
	Use:   "solvers",
	Short: "List the registered solvers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		artifacts, err := storage.New(cfg.Storage, storage.WithLogger(logger))
		if err != nil {
			return err
		}
		reg, err := newRegistry(cfg, artifacts, logger, nil)
		if err != nil {
			return err
		}
		for _, name := range reg.Names() {
			marker := " "
			if name == cfg.Solver {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(solversCmd)
}
