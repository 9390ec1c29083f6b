package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading from stdin and writing to stdout
func NewWizard() *Wizard {
	return NewWizardIO(os.Stdin, os.Stdout)
}

// NewWizardIO creates a wizard on the given streams
func NewWizardIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard, starting from base. A nil
// base starts from the defaults.
func (w *Wizard) Run(base *Config) (*Config, error) {
	fmt.Fprintln(w.out, "=== RESTx Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	if base != nil {
		copied := *base
		cfg = &copied
	}
	validator := NewValidator()

	fmt.Fprintln(w.out, "Server:")
	host, err := w.ask("Listen host", cfg.Server.Host)
	if err != nil {
		return nil, err
	}
	cfg.Server.Host = host

	for {
		raw, err := w.ask("Listen port", strconv.Itoa(cfg.Server.Port))
		if err != nil {
			return nil, err
		}
		port, convErr := strconv.Atoi(raw)
		if convErr != nil {
			fmt.Fprintf(w.out, "Error: %q is not a number\n", raw)
			continue
		}
		if err := validator.ValidatePort(port); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Server.Port = port
		break
	}

	for {
		raw, err := w.ask("Public base URL", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateBaseURL(raw); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Server.BaseURL = raw
		break
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Storage options:")
	fmt.Fprintln(w.out, "  memory - resources are lost on restart (default)")
	fmt.Fprintln(w.out, "  sqlite - resources are kept in a database file")
	for {
		driver, err := w.ask("Storage driver", cfg.Storage.Driver)
		if err != nil {
			return nil, err
		}
		path := ""
		if driver == "sqlite" {
			path, err = w.ask("Database file (empty for data dir)", cfg.Storage.Path)
			if err != nil {
				return nil, err
			}
			if path == "" {
				path = "resources.db"
				if cfg.DataDir != "" {
					path = cfg.DataDir + string(os.PathSeparator) + path
				}
			}
		}
		if err := validator.ValidateStorageDriver(driver, path); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Storage.Driver = driver
		cfg.Storage.Path = path
		break
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Logging:")
	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		level = "info"
	}
	cfg.Logging.Level = level

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

// ask prints a prompt and returns the answer, or def on an empty line.
func (w *Wizard) ask(prompt, def string) (string, error) {
	fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	line, err := w.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
