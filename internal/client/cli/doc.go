// Package cli provides the interactive device agent.
//
// It wires configuration, the local store, the remote store client, the sync
// engine (reconciler, orchestrator, scheduler, connectivity watcher), the
// optional control API, and an interactive REPL. Typical flow: open the local
// database, resolve the device id, prompt for the device secret when running
// on a terminal, start the background components, and execute user commands.
//
// Commands:
//   - tables, list, show: browse local records
//   - add, addtemp, edit: mutate records (fields as a JSON object)
//   - delete, retry: queue a delete; release a quarantined record
//   - sync, stats, status: drive and observe the engine
//
// The agent shuts down on exit, EOF, SIGINT or SIGTERM.
package cli
