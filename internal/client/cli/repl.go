package cli

import (
	"bufio"
	"context"
	"fmt"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Tables(ctx context.Context) error
	List(ctx context.Context, table string) error
	Show(ctx context.Context, table, id string) error
	Add(ctx context.Context, table, fields string, temporary bool) error
	Edit(ctx context.Context, table, id, fields string) error
	Delete(ctx context.Context, table, id string) error
	Retry(ctx context.Context, table, id string) error
	Sync(ctx context.Context) error
	Stats(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  tables                        list synchronized tables
  list <table>                  list local records
  show <table> <id>             show one record
  add <table> <json>            create a record
  addtemp <table> <json>        create a record with a temporary code
  edit <table> <id> <json>      replace the fields of a record
  delete <table> <id>           delete a record
  retry <table> <id>            release a quarantined record
  sync                          synchronize now
  stats                         show sync counters
  status                        show connectivity and last sync
  exit | quit                   leave the program`

// runREPL reads commands from scanner and dispatches them to a until EOF,
// "exit" or "quit", or until ctx is done.
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("agency %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}

		head, rest := cutFields(scanner.Text(), 1)
		if len(head) == 0 {
			continue
		}
		cmd := head[0]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "tables":
			err = a.Tables(ctx)

		case "l", "list":
			args, _ := cutFields(rest, 1)
			if len(args) < 1 {
				printlnFn("Usage: list <table>")
				continue
			}
			err = a.List(ctx, args[0])

		case "show":
			args, _ := cutFields(rest, 2)
			if len(args) < 2 {
				printlnFn("Usage: show <table> <id>")
				continue
			}
			err = a.Show(ctx, args[0], args[1])

		case "add", "addtemp":
			args, fields := cutFields(rest, 1)
			if len(args) < 1 || fields == "" {
				printlnFn(fmt.Sprintf("Usage: %s <table> <json>", cmd))
				continue
			}
			err = a.Add(ctx, args[0], fields, cmd == "addtemp")

		case "edit":
			args, fields := cutFields(rest, 2)
			if len(args) < 2 || fields == "" {
				printlnFn("Usage: edit <table> <id> <json>")
				continue
			}
			err = a.Edit(ctx, args[0], args[1], fields)

		case "delete":
			args, _ := cutFields(rest, 2)
			if len(args) < 2 {
				printlnFn("Usage: delete <table> <id>")
				continue
			}
			err = a.Delete(ctx, args[0], args[1])

		case "retry":
			args, _ := cutFields(rest, 2)
			if len(args) < 2 {
				printlnFn("Usage: retry <table> <id>")
				continue
			}
			err = a.Retry(ctx, args[0], args[1])

		case "sync":
			err = a.Sync(ctx)

		case "stats":
			err = a.Stats(ctx)

		case "status":
			err = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
