package main

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/mgomes/hyperfixi/fixi"
)

type lintWarning struct {
	Feature string
	Pos     fixi.Position
	Message string
}

func checkCommand(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	if err := fs.Parse(args); err != nil {
		return err
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return errors.New("fixi check: manifest path required")
	}

	manifestPath, err := filepath.Abs(remaining[0])
	if err != nil {
		return fmt.Errorf("resolve manifest path: %w", err)
	}
	m, err := readManifest(manifestPath)
	if err != nil {
		return err
	}

	engine := fixi.MustNewEngine(fixi.Config{})
	var problems []error
	for _, b := range m.Bindings {
		if err := engine.Check(b.program); err != nil {
			problems = append(problems, fmt.Errorf("binding %s: %w", b.Selector, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("check failed: %w", errors.Join(problems...))
	}

	warnings := manifestWarnings(m)
	if len(warnings) == 0 {
		fmt.Println("No issues found")
		return nil
	}

	for _, warning := range warnings {
		line := warning.Pos.Line
		column := warning.Pos.Column
		if line <= 0 {
			line = 1
		}
		if column <= 0 {
			column = 1
		}
		fmt.Printf("%s:%d:%d: %s (%s)\n", manifestPath, line, column, warning.Message, warning.Feature)
	}

	return fmt.Errorf("check found %d issue(s)", len(warnings))
}

func manifestWarnings(m *manifest) []lintWarning {
	warnings := make([]lintWarning, 0)
	for _, b := range m.Bindings {
		for _, feat := range b.program.Features {
			lintFeature(b.Selector, feat, &warnings)
		}
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Pos.Line != warnings[j].Pos.Line {
			return warnings[i].Pos.Line < warnings[j].Pos.Line
		}
		if warnings[i].Pos.Column != warnings[j].Pos.Column {
			return warnings[i].Pos.Column < warnings[j].Pos.Column
		}
		return warnings[i].Feature < warnings[j].Feature
	})

	return warnings
}

func lintFeature(selector string, feat fixi.Feature, warnings *[]lintWarning) {
	switch typed := feat.(type) {
	case *fixi.OnFeature:
		l := linter{feature: selector + " on " + typed.Event, warnings: warnings}
		l.commands(typed.Commands, false)
	case *fixi.DefFeature:
		l := linter{feature: "def " + typed.Name, warnings: warnings}
		l.commands(typed.Body, false)
	case *fixi.InitFeature:
		l := linter{feature: selector + " init", warnings: warnings}
		l.commands(typed.Commands, false)
	}
}

type linter struct {
	feature  string
	warnings *[]lintWarning
}

func (l linter) warn(pos fixi.Position, msg string) {
	*l.warnings = append(*l.warnings, lintWarning{Feature: l.feature, Pos: pos, Message: msg})
}

// commands lints a block and reports whether it always ends in a control
// transfer.
func (l linter) commands(cmds []fixi.Command, inLoop bool) bool {
	terminated := false
	for _, cmd := range cmds {
		if terminated {
			l.warn(cmd.Pos(), "unreachable command")
			continue
		}
		if l.command(cmd, inLoop) {
			terminated = true
		}
	}
	return terminated
}

func (l linter) command(cmd fixi.Command, inLoop bool) bool {
	switch typed := cmd.(type) {
	case *fixi.ReturnCommand, *fixi.ExitCommand, *fixi.ThrowCommand:
		return true
	case *fixi.HaltCommand:
		return !typed.TheEvent
	case *fixi.BreakCommand:
		if !inLoop {
			l.warn(typed.Pos(), "break outside a loop")
		}
		return true
	case *fixi.ContinueCommand:
		if !inLoop {
			l.warn(typed.Pos(), "continue outside a loop")
		}
		return true
	case *fixi.IfCommand:
		thenTerminated := l.commands(typed.Then, inLoop)
		if len(typed.Else) == 0 {
			return false
		}
		elseTerminated := l.commands(typed.Else, inLoop)
		return thenTerminated && elseTerminated
	case *fixi.UnlessCommand:
		l.commands(typed.Body, inLoop)
		return false
	case *fixi.TellCommand:
		return l.commands(typed.Body, inLoop)
	case *fixi.AsyncCommand:
		l.commands(typed.Body, false)
		return false
	case *fixi.ForCommand:
		l.loop(typed.Pos(), typed.Body)
		return false
	case *fixi.RepeatTimes:
		l.loop(typed.Pos(), typed.Body)
		return false
	case *fixi.RepeatWhile:
		l.loop(typed.Pos(), typed.Body)
		return false
	case *fixi.RepeatForever:
		l.loop(typed.Pos(), typed.Body)
		return false
	case *fixi.RepeatUntilEvent:
		// An empty body is a plain wait for the event.
		l.commands(typed.Body, true)
		return false
	default:
		return false
	}
}

func (l linter) loop(pos fixi.Position, body []fixi.Command) {
	if len(body) == 0 {
		l.warn(pos, "empty loop body")
		return
	}
	l.commands(body, true)
}
