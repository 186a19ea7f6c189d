package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jathurchan/casecoord/casenode"
	"github.com/jathurchan/casecoord/config"
	"github.com/jathurchan/casecoord/coordination"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/types"
)

const (
	defaultCategory = "cases"
	defaultTimeout  = 30 * time.Second
)

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitUsage  = 2
	exitBusy   = 3
	exitNoNode = 4
)

// connectFunc opens the coordination service described by cfg.
type connectFunc func(ctx context.Context, cfg *config.Config, log logger.Logger) (*coordination.Service, error)

// cli holds the global options shared by every command.
type cli struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	category   types.Category
	timeout    time.Duration

	connect connectFunc

	// interrupt is closed when the user asks a held lock to be released.
	interrupt <-chan os.Signal
}

func newCLI(out, errOut io.Writer) *cli {
	return &cli{
		out:     out,
		errOut:  errOut,
		connect: config.NewService,
	}
}

func main() {
	c := newCLI(os.Stdout, os.Stderr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	c.interrupt = sigChan

	os.Exit(c.run(os.Args[1:]))
}

// run parses the global flags and dispatches to a command. It returns the
// process exit code.
func (c *cli) run(args []string) int {
	fs := flag.NewFlagSet("casecoord", flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	fs.StringVar(&c.configPath, "config", "", "Path to the configuration file")
	category := fs.String("category", defaultCategory, "Namespace category (cases, manifests, config, centralRepository, healthMonitor)")
	fs.DurationVar(&c.timeout, "timeout", defaultTimeout, "Timeout for store operations")
	fs.Usage = func() { c.usage() }

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 {
		c.usage()
		return exitUsage
	}

	cat, err := types.ParseCategory(*category)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: %v\n", err)
		return exitUsage
	}
	c.category = cat

	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "lock":
		return c.withService(rest, "lock", c.lockCommand)
	case "get":
		return c.withService(rest, "get", c.getCommand)
	case "set":
		return c.withService(rest, "set", c.setCommand)
	case "delete":
		return c.withService(rest, "delete", c.deleteCommand)
	case "list":
		return c.withService(rest, "list", c.listCommand)
	case "create-case":
		return c.withService(rest, "create-case", c.createCaseCommand)
	case "show-case":
		return c.withService(rest, "show-case", c.showCaseCommand)
	case "init-config":
		return c.initConfigCommand(rest)
	case "help":
		c.usage()
		return exitOK
	default:
		fmt.Fprintf(c.errOut, "Unknown command: %s\n", command)
		c.usage()
		return exitUsage
	}
}

type commandFunc func(ctx context.Context, svc *coordination.Service, fs *flag.FlagSet, args []string) int

// withService loads the configuration, connects, runs the command and
// closes the connection.
func (c *cli) withService(args []string, name string, cmd commandFunc) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)

	cfg, err := config.Load(c.configPath)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error loading configuration: %v\n", err)
		return exitError
	}
	log := config.NewLogger(cfg.Logging).WithComponent("cli")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Coordination.ConnectTimeout)
	svc, err := c.connect(ctx, cfg, log)
	cancel()
	if err != nil {
		fmt.Fprintf(c.errOut, "Error connecting to coordination service: %v\n", err)
		return exitError
	}
	defer svc.Close()

	return cmd(context.Background(), svc, fs, args)
}

// parseArgs parses the command flags and requires exactly want positional arguments.
func (c *cli) parseArgs(fs *flag.FlagSet, args []string, want int, usage string) ([]string, bool) {
	if err := fs.Parse(args); err != nil {
		return nil, false
	}
	if fs.NArg() != want {
		fmt.Fprintf(c.errOut, "Usage: %s\n", usage)
		return nil, false
	}
	return fs.Args(), true
}

func (c *cli) lockCommand(ctx context.Context, svc *coordination.Service, fs *flag.FlagSet, args []string) int {
	shared := fs.Bool("shared", false, "Acquire a shared lock instead of an exclusive one")
	wait := fs.Duration("wait", 0, "How long to wait for the lock (0 tries once)")
	hold := fs.Duration("hold", 0, "How long to hold the lock (0 holds until interrupted)")
	pos, ok := c.parseArgs(fs, args, 1, "lock [-shared] [-wait d] [-hold d] <path>")
	if !ok {
		return exitUsage
	}
	path := pos[0]

	var (
		l   *coordination.DistributedLock
		err error
	)
	switch {
	case *shared && *wait > 0:
		l, err = svc.TryAcquireShared(ctx, c.category, path, *wait)
	case *shared:
		l, err = svc.TryAcquireSharedNow(ctx, c.category, path)
	case *wait > 0:
		l, err = svc.TryAcquireExclusive(ctx, c.category, path, *wait)
	default:
		l, err = svc.TryAcquireExclusiveNow(ctx, c.category, path)
	}
	if err != nil {
		fmt.Fprintf(c.errOut, "Error acquiring lock: %v\n", err)
		return exitError
	}
	if l == nil {
		fmt.Fprintf(c.errOut, "Lock on '%s' is held by another process\n", path)
		return exitBusy
	}

	fmt.Fprintf(c.out, "Acquired %s lock on '%s'\n", l.Mode(), svc.FullyQualifiedPath(c.category, path))
	c.holdLock(*hold)

	releaseCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := l.Release(releaseCtx); err != nil {
		fmt.Fprintf(c.errOut, "Error releasing lock: %v\n", err)
		return exitError
	}
	fmt.Fprintf(c.out, "Released lock on '%s'\n", path)
	return exitOK
}

// holdLock blocks for d, or until interrupted when d is zero.
func (c *cli) holdLock(d time.Duration) {
	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	} else {
		fmt.Fprintln(c.out, "Holding lock. Press Ctrl+C to release.")
	}

	select {
	case <-timeout:
	case <-c.interrupt:
	}
}

func (c *cli) getCommand(ctx context.Context, svc *coordination.Service, fs *flag.FlagSet, args []string) int {
	pos, ok := c.parseArgs(fs, args, 1, "get <path>")
	if !ok {
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := svc.GetNodeData(ctx, c.category, pos[0])
	if err != nil {
		fmt.Fprintf(c.errOut, "Error reading node: %v\n", err)
		return exitError
	}
	if data == nil {
		fmt.Fprintf(c.errOut, "Node '%s' does not exist\n", pos[0])
		return exitNoNode
	}
	_, _ = c.out.Write(data)
	return exitOK
}

func (c *cli) setCommand(ctx context.Context, svc *coordination.Service, fs *flag.FlagSet, args []string) int {
	file := fs.String("file", "", "Read the value from a file ('-' for stdin)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	var data []byte
	switch {
	case *file != "" && fs.NArg() == 1:
		var err error
		if *file == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(*file)
		}
		if err != nil {
			fmt.Fprintf(c.errOut, "Error reading value: %v\n", err)
			return exitError
		}
	case *file == "" && fs.NArg() == 2:
		data = []byte(fs.Arg(1))
	default:
		fmt.Fprintln(c.errOut, "Usage: set <path> <value> | set -file <file> <path>")
		return exitUsage
	}
	path := fs.Arg(0)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fqp, err := svc.UpsertNodePath(ctx, c.category, path)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error creating node: %v\n", err)
		return exitError
	}
	if err := svc.SetNodeData(ctx, c.category, path, data); err != nil {
		fmt.Fprintf(c.errOut, "Error writing node: %v\n", err)
		return exitError
	}
	fmt.Fprintf(c.out, "Wrote %d bytes to '%s'\n", len(data), fqp)
	return exitOK
}

func (c *cli) deleteCommand(ctx context.Context, svc *coordination.Service, fs *flag.FlagSet, args []string) int {
	pos, ok := c.parseArgs(fs, args, 1, "delete <path>")
	if !ok {
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := svc.DeleteNode(ctx, c.category, pos[0]); err != nil {
		fmt.Fprintf(c.errOut, "Error deleting node: %v\n", err)
		return exitError
	}
	fmt.Fprintf(c.out, "Deleted '%s'\n", svc.FullyQualifiedPath(c.category, pos[0]))
	return exitOK
}

func (c *cli) listCommand(ctx context.Context, svc *coordination.Service, fs *flag.FlagSet, args []string) int {
	if _, ok := c.parseArgs(fs, args, 0, "list"); !ok {
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	names, err := svc.GetNodeList(ctx, c.category)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error listing nodes: %v\n", err)
		return exitError
	}
	for _, name := range names {
		fmt.Fprintln(c.out, name)
	}
	return exitOK
}

func (c *cli) createCaseCommand(ctx context.Context, svc *coordination.Service, fs *flag.FlagSet, args []string) int {
	name := fs.String("name", "", "Unique case name")
	display := fs.String("display-name", "", "Display name (defaults to -name)")
	created := fs.String("created", "", "Creation date in the case metadata layout (defaults to now)")
	pos, ok := c.parseArgs(fs, args, 1, "create-case -name n [-display-name d] [-created date] <case-directory>")
	if !ok {
		return exitUsage
	}
	if *name == "" {
		fmt.Fprintln(c.errOut, "Error: -name is required")
		return exitUsage
	}
	if *display == "" {
		*display = *name
	}
	if *created == "" {
		*created = time.Now().Format(casenode.MetadataDateLayout)
	}

	meta := types.CaseMetadata{
		CaseDirectory: pos[0],
		CreatedDate:   *created,
		Name:          *name,
		DisplayName:   *display,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r, err := casenode.Create(ctx, svc, meta)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error writing case node data: %v\n", err)
		return exitError
	}
	c.printRecord(r)
	return exitOK
}

func (c *cli) showCaseCommand(ctx context.Context, svc *coordination.Service, fs *flag.FlagSet, args []string) int {
	pos, ok := c.parseArgs(fs, args, 1, "show-case <case-directory>")
	if !ok {
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r, err := casenode.Read(ctx, svc, pos[0])
	if err != nil {
		fmt.Fprintf(c.errOut, "Error reading case node data: %v\n", err)
		if errors.Is(err, casenode.ErrNodeDataNotFound) {
			return exitNoNode
		}
		return exitError
	}
	c.printRecord(r)
	return exitOK
}

var allContentItems = []casenode.ContentItem{
	casenode.ContentCaseDB,
	casenode.ContentCaseDir,
	casenode.ContentTextIndex,
	casenode.ContentDataSources,
	casenode.ContentManifestFileNodes,
}

func (c *cli) printRecord(r *casenode.Record) {
	fmt.Fprintf(c.out, "Version:         %d\n", r.Version)
	fmt.Fprintf(c.out, "Errors occurred: %t\n", r.ErrorsOccurred)
	if r.Version == 0 {
		return
	}
	fmt.Fprintf(c.out, "Directory:       %s\n", r.Directory)
	fmt.Fprintf(c.out, "Name:            %s\n", r.Name)
	fmt.Fprintf(c.out, "Display name:    %s\n", r.DisplayName)
	fmt.Fprintf(c.out, "Created:         %s\n", r.CreateTime().UTC().Format(time.RFC3339))
	fmt.Fprintf(c.out, "Last access:     %s\n", r.LastAccessTime().UTC().Format(time.RFC3339))
	for _, item := range allContentItems {
		if r.IsDeletedFlagSet(item) {
			fmt.Fprintf(c.out, "Deleted:         %s\n", item)
		}
	}
}

func (c *cli) initConfigCommand(args []string) int {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path := c.configPath
	switch {
	case fs.NArg() == 1:
		path = fs.Arg(0)
	case fs.NArg() > 1:
		fmt.Fprintln(c.errOut, "Usage: init-config [-force] [path]")
		return exitUsage
	case path == "":
		path = config.GetDefaultConfigPath()
	}

	if err := config.WriteDefault(path, *force); err != nil {
		fmt.Fprintf(c.errOut, "Error: %v\n", err)
		return exitError
	}
	fmt.Fprintf(c.out, "Wrote default configuration to %s\n", path)
	return exitOK
}

func (c *cli) usage() {
	fmt.Fprint(c.errOut, `casecoord - case coordination client

Usage:
  casecoord [global-options] <command> [command-options] <args>

Global Options:
  -config string     Configuration file (default `+config.GetDefaultConfigPath()+`)
  -category string   Namespace category (default "cases")
  -timeout duration  Timeout for store operations (default 30s)

Commands:
  lock [-shared] [-wait d] [-hold d] <path>   Acquire a lock, hold it, release it
  get <path>                                  Print the data of a node
  set <path> <value>                          Create the node if needed and write its data
  set -file <file> <path>                     Same, reading the value from a file
  delete <path>                               Delete a node without children
  list                                        List the nodes of the category
  create-case -name n <case-directory>        Write a case node record
  show-case <case-directory>                  Print a case node record
  init-config [-force] [path]                 Write the default configuration file
  help                                        Show this help message

Exit codes: 0 ok, 1 error, 2 usage, 3 lock busy, 4 no such node.
`)
}
