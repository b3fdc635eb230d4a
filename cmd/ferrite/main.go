/*
Copyright (C) 2026  Ferrite Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// ferrite is the server entrypoint: it loads configuration, recovers
// durable state, starts the background maintainers (epoch
// reclamation, active expiry, periodic checkpoint rewrite), optionally
// mounts the monitor package's admin HTTP surface, and finally blocks
// serving RESP connections until shut down.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dc0d/onexit"

	"github.com/ferritelabs/ferrite/clock"
	"github.com/ferritelabs/ferrite/config"
	"github.com/ferritelabs/ferrite/database"
	"github.com/ferritelabs/ferrite/durability"
	"github.com/ferritelabs/ferrite/epoch"
	"github.com/ferritelabs/ferrite/monitor"
	"github.com/ferritelabs/ferrite/server"
)

func main() {
	fmt.Print(`ferrite Copyright (C) 2026  Ferrite Contributors
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)

	defaults := config.Defaults()
	var (
		bindAddr   = flag.String("bind", defaults.BindAddress, "address to bind the RESP listener to")
		port       = flag.Int("port", defaults.Port, "RESP listener port")
		httpPort   = flag.Int("http-port", 0, "admin HTTP port for /info and /monitor (0 disables it)")
		dataDir    = flag.String("dir", "./data", "directory holding the AOL and checkpoints")
		aolFsync   = flag.String("aol-fsync", string(defaults.AOLFsync), "always, everysec, or no")
		databases  = flag.Int("databases", defaults.Databases, "number of numbered databases")
		rewriteInt = flag.Duration("checkpoint-interval", defaults.CheckpointInterval, "how often to take a compacting checkpoint")
	)
	flag.Parse()

	cfg := defaults
	cfg.BindAddress = *bindAddr
	cfg.Port = *port
	cfg.Databases = *databases
	cfg.AOLFsync = config.FsyncPolicy(*aolFsync)
	cfg.CheckpointInterval = *rewriteInt

	reg := database.NewRegistry(cfg.Databases, 0)

	sched := &clock.Scheduler{}
	defer sched.Stop()

	store, err := durability.Open(*dataDir, reg, cfg.AOLFsync, sched)
	if err != nil {
		slog.Error("ferrite: failed to recover durable state", "error", err)
		os.Exit(1)
	}

	epochMaintainer := epoch.NewMaintainer(epoch.Global, 10*time.Millisecond)
	epochMaintainer.Start()

	reg.StartAll(time.Second)

	rewriteCancel := sched.ScheduleEvery(cfg.CheckpointInterval, func() {
		if err := store.Rewrite(reg); err != nil {
			slog.Warn("ferrite: periodic checkpoint rewrite failed", "error", err)
		}
	})

	srv := server.New(reg, nil)

	onexit.Register(func() {
		slog.Info("ferrite: shutting down")
		reg.StopAll()
		epochMaintainer.Stop()
		rewriteCancel()
		if err := srv.Close(); err != nil {
			slog.Warn("ferrite: error closing listener", "error", err)
		}
		if err := store.Close(); err != nil {
			slog.Warn("ferrite: error closing durability store", "error", err)
		}
	})

	if *httpPort != 0 {
		mon := monitor.New(reg)
		go func() {
			addr := net.JoinHostPort(cfg.BindAddress, fmt.Sprint(*httpPort))
			slog.Info("ferrite: admin HTTP listening", "addr", addr)
			if err := http.ListenAndServe(addr, mon); err != nil {
				slog.Warn("ferrite: admin HTTP server stopped", "error", err)
			}
		}()
	}

	addr := server.FormatAddr(cfg.BindAddress, cfg.Port)
	slog.Info("ferrite: RESP listener starting", "addr", addr)
	if err := srv.ListenAndServe(addr); err != nil {
		slog.Error("ferrite: listener stopped", "error", err)
		os.Exit(1)
	}
}
