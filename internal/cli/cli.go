// Package cli implements reactorctl, a command line tool reading the graph
// models and execution history a reactor stored in SQLite or MySQL.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/petrijr/reactor"
	"github.com/petrijr/reactor/pkg/api"
	"github.com/petrijr/reactor/pkg/config"
	"github.com/petrijr/reactor/pkg/modelapi"
)

const (
	CmdModels  = "models"
	CmdPrint   = "print"
	CmdHistory = "history"
	CmdServe   = "serve"
)

// ErrUsage is returned for an unknown command or missing command arguments.
var ErrUsage = errors.New("usage error")

// Options are the flags shared by every command. Flags override the config
// file, which overrides defaults.
type Options struct {
	Config string `arg:"env:REACTOR_CONFIG" help:"YAML config file"`
	DSN    string `arg:"env:REACTOR_DSN" help:"SQLite data source name, overrides the history config"`
	Format string `help:"print format: text, json or yaml"`
	Addr   string `help:"serve listen address, overrides api.listen_address"`
	Debug  bool   `arg:"-d" help:"log at debug level"`
}

// Command is the command and its positional arguments.
type Command struct {
	Cmd  string   `arg:"positional" help:"models, print <graph>, history <execution-id> or serve"`
	Args []string `arg:"positional"`
}

type CommandLine struct {
	Options
	Command
}

// Run parses args (without the program name) and runs the command, writing
// results to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	var c CommandLine
	p, err := arg.NewParser(arg.Config{Program: "reactorctl"}, &c)
	if err != nil {
		return err
	}
	if err := p.Parse(args); err != nil {
		if err == arg.ErrHelp {
			p.WriteHelp(out)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUsage, err)
	}

	cfg, err := loadConfig(c.Options)
	if err != nil {
		return err
	}
	r, closeFn, err := reactor.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	switch c.Cmd {
	case CmdModels:
		return listModels(ctx, r, out)
	case CmdPrint:
		if len(c.Args) != 1 {
			return fmt.Errorf("%w: print takes one graph name", ErrUsage)
		}
		return printModel(ctx, r, c.Args[0], c.Format, out)
	case CmdHistory:
		if len(c.Args) != 1 {
			return fmt.Errorf("%w: history takes one execution id", ErrUsage)
		}
		return printHistory(ctx, r, c.Args[0], out)
	case CmdServe:
		return modelapi.NewAPI(r, cfg.Logger(os.Stderr)).Run(ctx, cfg.API.ListenAddress)
	case "":
		p.WriteUsage(out)
		return fmt.Errorf("%w: no command given", ErrUsage)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, c.Cmd)
	}
}

func loadConfig(o Options) (config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		var err error
		if cfg, err = config.Load(o.Config); err != nil {
			return cfg, err
		}
	}
	if o.DSN != "" {
		cfg.History = config.History{Driver: config.HistorySQLite, DSN: o.DSN}
	}
	if o.Addr != "" {
		cfg.API.ListenAddress = o.Addr
	}
	if o.Debug {
		cfg.Log.Level = "debug"
	}
	if !cfg.History.Durable() {
		return cfg, fmt.Errorf("%w: reactorctl reads a sqlite or mysql history; set history.driver or --dsn", ErrUsage)
	}
	return cfg, cfg.Validate()
}

func listModels(ctx context.Context, r api.ModelReader, out io.Writer) error {
	names, err := r.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func printModel(ctx context.Context, r api.ModelReader, name, format string, out io.Writer) error {
	m, err := r.GetModel(ctx, name)
	if err != nil {
		return fmt.Errorf("graph %q: %w", name, err)
	}

	var b []byte
	switch strings.ToLower(format) {
	case "", "text":
		return printText(m, out)
	case "json":
		b, err = m.ToJSON()
	case "yaml":
		b, err = m.ToYAML()
	default:
		return fmt.Errorf("%w: unknown format %q", ErrUsage, format)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	if err == nil && len(b) > 0 && b[len(b)-1] != '\n' {
		_, err = fmt.Fprintln(out)
	}
	return err
}

// printText renders the graph as its list of flows, one per line.
func printText(m api.GraphModel, out io.Writer) error {
	fmt.Fprintf(out, "graph %s (payload %s)\n", m.Name, m.Payload.Type)
	for _, doc := range m.Payload.Docs {
		fmt.Fprintf(out, "  # %s\n", doc)
	}

	detached := map[string]bool{}
	for _, p := range m.Processors {
		detached[p.Identity] = p.Detached
	}
	for _, s := range m.Subgraphs {
		detached[s.Identity] = s.Detached
	}

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	for _, l := range m.Links() {
		to := l.To
		if detached[to] {
			to += " (detached)"
		}
		fmt.Fprintf(w, "  %s\t-[%s]->\t%s\n", l.From, l.Label, to)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for i, g := range m.MergeGroups {
		start := ""
		if g.IncludesStartPoint {
			start = " with start point"
		}
		fmt.Fprintf(out, "  merge group %d%s: %s\n", i+1, start, strings.Join(g.MergePoints, ", "))
	}
	return nil
}

func printHistory(ctx context.Context, r api.HistoryReader, id string, out io.Writer) error {
	events, err := r.ListEvents(ctx, id)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("execution %q: %w", id, modelapi.ErrExecutionNotFound)
	}

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tTYPE\tITEM\tSTATUS\tDETAIL")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ev.At.Format(time.RFC3339Nano), ev.Type, dash(ev.Item), dash(string(ev.Status)), ev.Detail)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
