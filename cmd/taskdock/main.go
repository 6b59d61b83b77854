// Package main provides the taskdock client CLI: local task management
// backed by SQLite, with explicit sync against a remote peer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/taskdock/taskdock/internal/config"
	"github.com/taskdock/taskdock/internal/db"
	"github.com/taskdock/taskdock/internal/logging"
	syncpkg "github.com/taskdock/taskdock/internal/sync"
	"github.com/taskdock/taskdock/internal/sync/queue"
	"github.com/taskdock/taskdock/internal/sync/transport"
	"github.com/taskdock/taskdock/internal/tasks"
)

const usage = `taskdock - offline-first task manager

Usage:
  taskdock add <title> [-d description]
  taskdock list [-all]
  taskdock update <id> -title <title> [-d description]
  taskdock complete <id>
  taskdock reopen <id>
  taskdock delete <id>
  taskdock conflicts <id>
  taskdock sync
  taskdock status
`

// app bundles the wired components for command handlers.
type app struct {
	service *tasks.Service
	engine  *syncpkg.Engine
	cfg     *config.Config
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Keep stdout for command output; diagnostics go to stderr.
	logging.Init(os.Stderr, logging.LevelWarn)

	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}

	database, err := db.Open(cfg.Database.Dir, "taskdock.db")
	if err != nil {
		fatal("open database: %v", err)
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB, db.ClientMigrations).Up(); err != nil {
		fatal("migrate database: %v", err)
	}

	store := db.NewTaskStore(database.DB)
	defer store.Close()
	q := queue.New(database.DB)

	a := &app{
		service: tasks.NewService(store, q),
		engine:  syncpkg.NewEngine(store, q, transport.NewClient(cfg.Sync), cfg.Sync),
		cfg:     cfg,
	}

	if err := a.run(os.Args[1], os.Args[2:]); err != nil {
		fatal("%v", err)
	}
}

func (a *app) run(command string, args []string) error {
	switch command {
	case "add":
		return a.cmdAdd(args)
	case "list":
		return a.cmdList(args)
	case "update":
		return a.cmdUpdate(args)
	case "complete":
		return a.cmdSetCompleted(args, true)
	case "reopen":
		return a.cmdSetCompleted(args, false)
	case "delete":
		return a.cmdDelete(args)
	case "conflicts":
		return a.cmdConflicts(args)
	case "sync":
		return a.cmdSync()
	case "status":
		return a.cmdStatus()
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) cmdAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	description := fs.String("d", "", "task description")
	if err := fs.Parse(argsAfterPositional(args)); err != nil {
		return err
	}
	if len(args) < 1 || args[0] == "" {
		return fmt.Errorf("add: title required")
	}

	task, err := a.service.Create(args[0], *description)
	if err != nil {
		return err
	}
	fmt.Printf("created %s\n", task.ID)
	return nil
}

func (a *app) cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	all := fs.Bool("all", false, "include completed tasks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := a.service.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tSYNC\tTITLE")
	for _, task := range list {
		if task.Completed && !*all {
			continue
		}
		done := " "
		if task.Completed {
			done = "x"
		}
		fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\n", task.ID, done, task.SyncState, task.Title)
	}
	return w.Flush()
}

func (a *app) cmdUpdate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("update: task id required")
	}
	id := args[0]

	fs := flag.NewFlagSet("update", flag.ExitOnError)
	title := fs.String("title", "", "new title")
	description := fs.String("d", "", "new description")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *title == "" {
		return fmt.Errorf("update: -title required")
	}

	if _, err := a.service.Update(id, *title, *description); err != nil {
		return err
	}
	fmt.Printf("updated %s\n", id)
	return nil
}

func (a *app) cmdSetCompleted(args []string, completed bool) error {
	if len(args) < 1 {
		return fmt.Errorf("task id required")
	}
	if _, err := a.service.SetCompleted(args[0], completed); err != nil {
		return err
	}
	if completed {
		fmt.Printf("completed %s\n", args[0])
	} else {
		fmt.Printf("reopened %s\n", args[0])
	}
	return nil
}

func (a *app) cmdDelete(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("delete: task id required")
	}
	if err := a.service.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func (a *app) cmdConflicts(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("conflicts: task id required")
	}

	logs, err := a.service.Conflicts(args[0])
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Println("no conflicts recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DETECTED\tRESOLUTION\tLOCAL\tREMOTE")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n",
			time.Unix(l.DetectedAt, 0).Format(time.RFC3339),
			l.Resolution, l.LocalTimestamp, l.RemoteTimestamp)
	}
	return w.Flush()
}

func (a *app) cmdSync() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := a.engine.Sync(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("synced %d, failed %d (%s)\n",
		result.SyncedItems, result.FailedItems, result.Duration.Round(time.Millisecond))
	for _, e := range result.Errors {
		if e.TaskID != "" {
			fmt.Printf("  %s %s: %s\n", e.Operation, e.TaskID, e.Message)
		} else {
			fmt.Printf("  %s\n", e.Message)
		}
	}
	if !result.Success {
		return fmt.Errorf("sync finished with failures")
	}
	return nil
}

func (a *app) cmdStatus() error {
	pending, err := a.service.PendingCount()
	if err != nil {
		return err
	}
	fmt.Printf("endpoint: %s\n", a.cfg.Sync.Endpoint)
	fmt.Printf("pending mutations: %d\n", pending)
	return nil
}

// argsAfterPositional returns the flag arguments following the first
// positional argument, so `add "title" -d desc` parses naturally.
func argsAfterPositional(args []string) []string {
	if len(args) < 2 {
		return nil
	}
	return args[1:]
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "taskdock: "+format+"\n", args...)
	os.Exit(1)
}
