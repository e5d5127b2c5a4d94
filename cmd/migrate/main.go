package main

import (
	"fmt"
	"os"

	"github.com/jhoicas/agrosoft-api/internal/infrastructure/postgres"
	"github.com/jhoicas/agrosoft-api/pkg/config"
	"github.com/jhoicas/agrosoft-api/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var databaseURL string
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Migraciones del esquema de actividades",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "connection string; por defecto DATABASE_URL o DB_*")

	open := func() (*postgres.Migrator, error) {
		url := databaseURL
		if url == "" {
			cfg, err := config.Load()
			if err != nil {
				return nil, fmt.Errorf("cargar configuración: %w", err)
			}
			url = cfg.DB.ConnectionString()
		}
		log := logger.New(logger.Config{Env: "development", Level: "info"})
		return postgres.NewMigrator(url, log)
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Aplica las migraciones pendientes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mg, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = mg.Close() }()
			return mg.Up()
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revierte migraciones (todas si --steps es 0)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mg, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = mg.Close() }()
			return mg.Down(steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "número de migraciones a revertir")
	root.AddCommand(down)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Muestra la versión aplicada",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mg, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = mg.Close() }()
			version, dirty, ok, err := mg.Version()
			if err != nil {
				return err
			}
			if !ok {
				cmd.Println("sin migraciones aplicadas")
				return nil
			}
			cmd.Printf("versión %d (dirty=%t)\n", version, dirty)
			return nil
		},
	})
	return root
}
