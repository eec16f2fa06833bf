package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mgomes/hyperfixi/fixi"
	"github.com/mgomes/hyperfixi/htmldoc"
)

func main() {
	if err := runCLI(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(args []string) error {
	if len(args) < 2 {
		return usageError()
	}
	switch args[1] {
	case "run":
		return runCommand(args[2:])
	case "check":
		return checkCommand(args[2:])
	case "repl":
		return replCommand(args[2:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return usageError()
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	configPath := fs.String("config", "", "YAML file with engine limits and log level")
	logLevel := fs.String("log-level", "", "minimum log level (debug, info, warn, error)")
	var fires fireList
	fs.Var(&fires, "fire", "dispatch event@selector after install (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	remaining := fs.Args()
	if len(remaining) < 2 {
		return errors.New("fixi run: manifest and page paths required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	m, err := readManifest(remaining[0])
	if err != nil {
		return err
	}
	doc, err := loadPage(remaining[1])
	if err != nil {
		return err
	}
	engine, err := fixi.NewEngine(cfg.engineConfig(&logger))
	if err != nil {
		return err
	}
	rt := engine.NewRuntime(doc)
	defer rt.Close()

	ctx := context.Background()
	if err := m.install(ctx, rt, doc, logger); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	for _, f := range fires {
		targets, err := doc.QueryAll(f.selector)
		if err != nil {
			return fmt.Errorf("fire %s: %w", f, err)
		}
		if len(targets) == 0 {
			logger.Warn().Str("selector", f.selector).Msg("fire matched no elements")
		}
		for _, el := range targets {
			if err := rt.Trigger(ctx, el, f.event, fixi.Undefined()); err != nil {
				return fmt.Errorf("fire %s: %w", f, err)
			}
		}
	}
	if err := rt.Wait(); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	if err := doc.Render(os.Stdout); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	fmt.Println()
	return nil
}

func replCommand(args []string) error {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	configPath := fs.String("config", "", "YAML file with engine limits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	doc := htmldoc.MustParseString(blankPage)
	if fs.NArg() > 0 {
		if doc, err = loadPage(fs.Arg(0)); err != nil {
			return err
		}
	}
	model, err := newREPLModel(cfg, doc)
	if err != nil {
		return err
	}
	return runREPL(model)
}

const blankPage = "<html><head></head><body></body></html>"

func loadPage(path string) (*htmldoc.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	defer f.Close()
	doc, err := htmldoc.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl := zerolog.WarnLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level %q", level)
		}
		lvl = parsed
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func usageError() error {
	printUsage()
	return errors.New("invalid command")
}

func printUsage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s run [flags] <manifest.yaml> <page.html>\n", prog)
	fmt.Fprintf(os.Stderr, "       %s check <manifest.yaml>\n", prog)
	fmt.Fprintf(os.Stderr, "       %s repl [page.html]\n", prog)
	fmt.Fprintln(os.Stderr, "Flags:")
	fmt.Fprintln(os.Stderr, "  -config <file>")
	fmt.Fprintln(os.Stderr, "    YAML file with loop_limit, step_quota, recursion_limit and log_level")
	fmt.Fprintln(os.Stderr, "  -log-level string")
	fmt.Fprintln(os.Stderr, "    minimum log level (default \"warn\")")
	fmt.Fprintln(os.Stderr, "  -fire <event@selector>")
	fmt.Fprintln(os.Stderr, "    dispatch an event on every matching element (repeatable)")
}

type flagErrorSink struct{}

func (flagErrorSink) Write(p []byte) (int, error) {
	return len(p), nil
}

type fire struct {
	event    string
	selector string
}

func (f fire) String() string { return f.event + "@" + f.selector }

type fireList []fire

func (l *fireList) String() string {
	parts := make([]string, len(*l))
	for i, f := range *l {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}

func (l *fireList) Set(value string) error {
	event, selector, found := strings.Cut(value, "@")
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("fire %q: event name required", value)
	}
	selector = strings.TrimSpace(selector)
	if !found || selector == "" {
		selector = "body"
	}
	*l = append(*l, fire{event: event, selector: selector})
	return nil
}
