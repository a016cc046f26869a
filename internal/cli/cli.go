package cli

import (
	"flag"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/vk/docforge/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("docforge", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Docforge - an incremental build tool for document trees.

Usage:
  docforge [options] [MANIFEST_PATH]

Arguments:
  MANIFEST_PATH
    Path to a single .hcl manifest or a directory containing .hcl manifests.

Options:
`)
		flagSet.PrintDefaults()
	}

	manifestFlag := flagSet.String("manifest", "", "Path to the manifest file or directory.")
	mFlag := flagSet.String("m", "", "Path to the manifest file or directory (shorthand).")
	configFlag := flagSet.String("config", "", "Path to an optional YAML configuration file.")
	jobsFlag := flagSet.Int("jobs", runtime.NumCPU(), "Number of build rules allowed to run concurrently.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	var targets []string
	flagSet.Func("target", "Node address to bring up to date. Repeatable, accepts comma-separated lists.", func(s string) error {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				targets = append(targets, part)
			}
		}
		return nil
	})

	vars := map[string]string{}
	flagSet.Func("var", "Override a manifest variable as NAME=VALUE. Repeatable.", func(s string) error {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return fmt.Errorf("expected NAME=VALUE, got %q", s)
		}
		vars[name] = value
		return nil
	})

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *manifestFlag != "" {
		path = *manifestFlag
	} else if *mFlag != "" {
		path = *mFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	jobs := *jobsFlag
	logFormat := strings.ToLower(*logFormatFlag)
	logLevel := strings.ToLower(*logLevelFlag)

	// Values from the configuration file fill in anything not set explicitly
	// on the command line: defaults < file < flags.
	if *configFlag != "" {
		fileCfg, err := app.LoadFileConfig(*configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		explicit := map[string]bool{}
		flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

		if fileCfg.Jobs > 0 && !explicit["jobs"] {
			jobs = fileCfg.Jobs
		}
		if fileCfg.LogLevel != "" && !explicit["log-level"] {
			logLevel = strings.ToLower(fileCfg.LogLevel)
		}
		if fileCfg.LogFormat != "" && !explicit["log-format"] {
			logFormat = strings.ToLower(fileCfg.LogFormat)
		}
		for name, value := range fileCfg.Vars {
			if _, ok := vars[name]; !ok {
				vars[name] = value
			}
		}
	}

	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		ManifestPath: path,
		Targets:      targets,
		Vars:         vars,
		Jobs:         jobs,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
