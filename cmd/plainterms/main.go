// Package main provides the plainterms binary entry point. Plainterms turns
// legal documents into structured plain-language analyses and answers
// grounded follow-up questions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Register completion providers via init()
	_ "github.com/plainterms/plainterms/llm/providers"
)

const (
	Version = "1.0.0"
	appName = "plainterms"
)

func main() {
	// .env loading is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   appName,
		Short: "AI-powered legal document analysis and grounded Q&A",
		Long: `Plainterms analyzes legal documents (contracts, leases, loan agreements,
terms of service) into structured plain-language guidance, and answers
follow-up questions grounded in the analyzed document.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, Version)
		},
	}
}

// newLogger builds the process logger. JSON output for machine collection,
// text for interactive use.
func newLogger(level string, jsonOutput bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
