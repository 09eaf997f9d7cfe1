// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbgate/pkg/gateway"
	"github.com/Thermoquad/xbgate/pkg/mailbox"
	"github.com/Thermoquad/xbgate/pkg/xbee"
)

var (
	runSkipSetup     bool
	runStatsInterval int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the coordinator gateway",
	Long: `Run the gateway: reset the module, configure it, join the network and
then service it until interrupted.

Every sensor frame received from a node is decoded and handed to the
configured script (script.path) and WebSocket collector (publish.url).
Repeated frames are flagged as duplicates and not passed to the script.
Commands written to the mailbox FIFO (mailbox.path), one per line as

  xb@00:13:a2:00:40:d9:68:9c;3;ECO

are sent to the addressed node. Valid commands are CONFORT, CONFORT_M1,
CONFORT_M2, ECO, HG and STOP.

SIGINT and SIGTERM stop the gateway.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runSkipSetup, "skip-setup", false, "Do not reset, configure or join the module")
	runCmd.Flags().IntVar(&runStatsInterval, "stats-interval", 300, "Statistics log interval (seconds, 0 disables)")
}

func runGateway(cmd *cobra.Command, args []string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !runSkipSetup {
		resetter, err := gateway.NewResetter(cfg.Reset)
		if err != nil {
			return err
		}
		if resetter != nil {
			log.Printf("[reset] pulsing module reset (%s)", cfg.Reset.Driver)
			if err := resetter.Reset(); err != nil {
				log.Printf("[reset] failed: %v", err)
			}
		}
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[radio] %s", connInfo)

	var sinks gateway.MultiSink
	if cfg.Script.Path != "" {
		sinks = append(sinks, gateway.NewScriptSink(cfg.Script.Path, cfg.ScriptTimeout(), nil))
		log.Printf("[sink] script %s", cfg.Script.Path)
	}
	if cfg.Publish.URL != "" {
		publisher := gateway.NewPublishSink(cfg.Publish.URL, cfg.Publish.InsecureSkipVerify, nil)
		if wsUsername != "" {
			publisher.Username = wsUsername
			publisher.Password, err = GetPassword()
			if err != nil {
				return err
			}
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Printf("[sink] publish %s", cfg.Publish.URL)
	}

	mb := mailbox.New(cfg.Mailbox.Path, nil)
	if err := mb.Open(); err != nil {
		return err
	}
	defer mb.Close()
	log.Printf("[mailbox] %s", mb.Path())

	g := gateway.New(conn, mb, gateway.Options{
		ReplyTimeout:  cfg.ReplyTimeout(),
		Sink:          sinks,
		Stats:         xbee.NewStatistics(),
		StatsInterval: time.Duration(runStatsInterval) * time.Second,
	})

	if !runSkipSetup {
		network, err := cfg.ZigbeeConfig()
		if err != nil {
			return err
		}
		err = g.Setup(gateway.SetupOptions{
			Network:            network,
			NodeIdentifier:     cfg.Radio.NodeIdentifier,
			JoinTime:           cfg.Network.JoinTime,
			AssociationTimeout: cfg.AssociationTimeout(),
		})
		if err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}

	log.Printf("[gateway] running")
	err = g.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Printf("[gateway] stopped")
		return nil
	}
	return err
}
