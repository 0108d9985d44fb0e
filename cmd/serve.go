package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the websocket topics, the JSON API and the progress scheduler until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = int(port)
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, scheduler := r.server(st)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx, nil)
	}()

	err = srv.ListenAndServe(ctx)
	stop()
	wg.Wait()
	return err
}

// server wires the bus, engine, scheduler and handlers over st.
func (r *Runner) server(st *store) (*server.Server, *tasks.Scheduler) {
	cfg := r.config
	bus := broadcast.NewBus(cfg.Broadcast.Buffer, r.logger)
	engine := r.engine(st, bus)

	scheduler := tasks.NewScheduler(tasks.SchedulerOpts{
		Sessions:  st.sessions,
		Engine:    engine,
		Publisher: bus,
		Tick:      cfg.Playback.Tick(),
		Logger:    r.logger,
	})

	socket := server.NewSocketHandler(server.SocketOpts{
		Engine:       engine,
		Bus:          bus,
		Follower:     scheduler,
		CommandRate:  cfg.Broadcast.CommandRate,
		CommandBurst: cfg.Broadcast.CommandBurst,
		PongWait:     cfg.Broadcast.PongWait(),
		Logger:       r.logger,
	})

	api := server.NewAPIHandler(server.APIOpts{
		Engine:        engine,
		Sessions:      st.sessions,
		Tracks:        st.tracks,
		Bus:           bus,
		DefaultVolume: cfg.Playback.DefaultVolume,
		Logger:        r.logger,
	})

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(socket)
	router.Handler(api)

	return server.NewServer(cfg.Server.Addr(), router, r.logger, socket), scheduler
}
