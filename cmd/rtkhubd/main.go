// Command rtkhubd runs the GNSS aggregator daemon: it registers the
// receivers and NTRIP mounts named in a JSON config file, starts
// streaming, and exposes an interactive console for manual control.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/aggregator"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/config"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/publish"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/receiver"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("rtkhubd: failed to load configuration")
	}
	if level, levelErr := logrus.ParseLevel(cfg.LogLevel); levelErr == nil && !*debug {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := aggregator.NewAggregator(cfg.MountManager.ToManagerConfig(), log.WithField("component", "aggregator"))

	hub := publish.NewHub()
	agg.Subscribe(hub)

	for _, rc := range cfg.Receivers {
		if ok := agg.AddReceiver(rc.ID, receiver.Variant(rc.Variant), rc.Path, rc.Baud); !ok {
			log.WithField("receiver", rc.ID).Warn("rtkhubd: could not register receiver from config")
			continue
		}
		if err := agg.ConnectReceiver(ctx, rc.ID); err != nil {
			log.WithError(err).WithField("receiver", rc.ID).Warn("rtkhubd: could not connect configured receiver")
		}
	}

	for _, mc := range cfg.Mounts {
		agg.AddMount(mc.ToDescriptor())
	}

	agg.StartAllStreams(ctx)
	if len(cfg.Mounts) > 0 {
		if ok := agg.StartNTRIP(ctx); !ok {
			log.Warn("rtkhubd: NTRIP failed to connect any configured mount")
		}
	}

	go watchSignals(cancel, agg, log)

	fmt.Println()
	r := newREPL(ctx, agg, log.WithField("component", "repl"))
	r.start()

	agg.StopAllStreams()
}

// watchSignals stops the daemon's streams on SIGINT/SIGTERM so a plain
// Ctrl-C leaves every goroutine quiescent before the process exits.
func watchSignals(cancel context.CancelFunc, agg *aggregator.Aggregator, log logrus.FieldLogger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("rtkhubd: received shutdown signal")
	agg.StopAllStreams()
	cancel()
}
