package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cli.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout(cmd), string(data))
	return err
}

// newLogger builds the logger selected by --log-format and --log-level.
// Logs go to the command's error output.
func newLogger(cmd *cli.Command) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String(logLevelFlag))); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format := strings.ToLower(cmd.String(logFormatFlag)); format {
	case "text", "":
		return slog.New(slog.NewTextHandler(stderr(cmd), opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(stderr(cmd), opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}
