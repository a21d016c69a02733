package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/agencysync/internal/client/api"
	"github.com/dmitrijs2005/agencysync/internal/client/client"
	"github.com/dmitrijs2005/agencysync/internal/client/config"
	"github.com/dmitrijs2005/agencysync/internal/client/connectivity"
	"github.com/dmitrijs2005/agencysync/internal/client/orchestrator"
	"github.com/dmitrijs2005/agencysync/internal/client/policy"
	"github.com/dmitrijs2005/agencysync/internal/client/reconciler"
	"github.com/dmitrijs2005/agencysync/internal/client/scheduler"
	"github.com/dmitrijs2005/agencysync/internal/client/services"
	"github.com/dmitrijs2005/agencysync/internal/logging"
	"github.com/dmitrijs2005/agencysync/internal/shared"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config *config.Config
	log    logging.Logger
	out    io.Writer
	in     io.Reader

	repos    *client.Repositories
	records  services.RecordService
	device   services.DeviceService
	sync     syncController
	deviceID string

	maxAttempts int

	sched     *scheduler.Scheduler
	watcher   *connectivity.Watcher
	apiServer *api.Server
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	log = logging.OrNop(log)

	db, err := client.InitDatabase(ctx, c.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	repos := client.NewRepositories(db)

	app, err := wire(ctx, c, log, repos)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}
	return app, nil
}

func wire(ctx context.Context, c *config.Config, log logging.Logger, repos *client.Repositories) (*App, error) {
	deviceID, err := services.EnsureDeviceID(ctx, repos.Metadata, c.DeviceID)
	if err != nil {
		return nil, err
	}

	secret, err := deviceSecret(c.DeviceSecret)
	if err != nil {
		return nil, fmt.Errorf("read device secret: %w", err)
	}

	remote, err := client.NewGRPCClient(c.ServerEndpointAddr, deviceID, secret)
	if err != nil {
		return nil, err
	}

	pol, err := policy.Load(c.PolicyFile)
	if err != nil {
		_ = remote.Close()
		return nil, fmt.Errorf("load policy: %w", err)
	}

	opts := c.ReconcilerOptions()
	rec := reconciler.New(repos.Records, repos.DeleteQueue, remote, pol, log, opts)
	orch := orchestrator.New(rec, c.Tables, c.MaxParallelTables, log)
	scanner := scheduler.NewTableScanner(repos.Records, repos.DeleteQueue, c.Tables, opts.MaxAttempts, nil)
	sched := scheduler.New(orch, scanner, log, c.SchedulerConfig())

	app := &App{
		config:      c,
		log:         log,
		out:         os.Stdout,
		in:          os.Stdin,
		repos:       repos,
		records:     services.NewRecordService(repos, c.Tables, sched, log),
		device:      services.NewDeviceService(remote, repos.Metadata),
		sync:        sched,
		deviceID:    deviceID,
		maxAttempts: opts.MaxAttempts,
		sched:       sched,
		watcher:     connectivity.NewWatcher(remote, sched, c.OnlineCheckInterval, log),
	}
	if c.ControlAddr != "" {
		app.apiServer = api.NewServer(c.ControlAddr, api.NewRouter(sched, log), log)
	}
	return app, nil
}

// deviceSecret returns the configured secret, or prompts for one when stdin
// is a terminal.
func deviceSecret(configured string) (string, error) {
	if configured != "" || !isTerminal(int(os.Stdin.Fd())) {
		return configured, nil
	}
	pw, err := GetPassword(os.Stdout, "Device secret: ")
	if err != nil {
		return "", err
	}
	defer shared.WipeByteArray(pw)
	return string(pw), nil
}

func (a *App) getStatus() string {
	if a.sync == nil {
		return ""
	}
	if a.sync.IsOnline() {
		return "(online)"
	}
	return "(offline)"
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// trackSyncs stores the time of every completed sync in the metadata store.
func (a *App) trackSyncs(ctx context.Context) {
	events, cancel := a.sched.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := a.device.SetLastSyncAt(ctx, ev.At); err != nil {
				a.log.Warn(ctx, "failed to store last sync time", "err", err)
			}
		}
	}
}

// Run starts the background components and the REPL. It returns when the
// user exits or a termination signal arrives, after the background
// components have stopped.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.initSignalHandler(cancel)
	defer a.close(ctx)

	a.log.Info(ctx, "starting agent", "device", a.deviceID, "server", a.config.ServerEndpointAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { a.sched.Run(gctx); return nil })
	g.Go(func() error { a.watcher.Run(gctx); return nil })
	g.Go(func() error { a.trackSyncs(gctx); return nil })
	if a.apiServer != nil {
		g.Go(func() error { return a.apiServer.Run(gctx) })
	}
	g.Go(func() error {
		if err := a.device.Authenticate(gctx); err != nil {
			a.log.Warn(gctx, "authentication deferred", "err", err)
		}
		return nil
	})

	// The REPL blocks on stdin, so it is not part of the group: a signal
	// must be able to stop the agent while a read is pending.
	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		fmt.Fprintln(a.out, "agencysync agent (type 'help' for commands)")
		runREPL(gctx, a, a.getStatus, bufio.NewScanner(a.in))
	}()

	select {
	case <-replDone:
	case <-gctx.Done():
	}
	cancel()
	return g.Wait()
}

func (a *App) close(ctx context.Context) {
	if err := a.device.Close(); err != nil {
		a.log.Warn(ctx, "failed to close remote client", "err", err)
	}
	if err := a.repos.Close(); err != nil {
		a.log.Warn(ctx, "failed to close database", "err", err)
	}
}
