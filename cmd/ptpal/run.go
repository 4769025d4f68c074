package main

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"

	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/clockserver"
	"github.com/AndrewLester/ptpal/fsm"
	"github.com/AndrewLester/ptpal/ptp"
	"github.com/AndrewLester/ptpal/ptpd"
	"github.com/AndrewLester/ptpal/udptransport"
	"github.com/AndrewLester/ptpal/wire"
)

const defaultConfigPath = "/etc/ptp4l.conf"

func newRunCommand() *cobra.Command {
	var configPath string
	var noDaemon bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ptpal daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !noDaemon {
				d, err := daemonCtx.Reborn()
				if err != nil {
					if errors.Is(err, daemon.ErrWouldBlock) {
						killDaemon()
						fmt.Println("Successfully stopped ptpal daemon.")
						return nil
					}
					return fmt.Errorf("daemonize: %w", err)
				}
				if d != nil {
					fmt.Printf("Daemon process (ptpald, %d) started successfully.\n", d.Pid)
					return nil
				}
				defer daemonCtx.Release()
			}

			return runDaemon(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "Path to the ptp4l.conf-style config file.")
	cmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "Don't run ptpal as a daemon.")
	return cmd
}

func runDaemon(configPath string) error {
	cfg, err := ptpd.Load(configPath)
	if err != nil {
		return err
	}

	identity, err := clockIdentity(cfg.ClockIdentity)
	if err != nil {
		return err
	}

	clock := clockserver.New(identity, cfg.DomainNumber)
	transport := udptransport.New()

	portNumber := uint16(1)
	for name, pc := range cfg.Ports {
		_, err := ptp.Open(name, portNumber, transport, wire.DefaultCodec, clock, fsm.Default, bmc.Default, pc.DelayMechanism, pc.Timestamping)
		if err != nil {
			log.WithError(err).WithField("interface", name).Error("failed to open port")
			continue
		}
		portNumber++
	}

	statusServer := &ptpd.StatusServer{Socket: cfg.RPCSocket, Clock: clock}
	go func() {
		if err := statusServer.Listen(); err != nil {
			log.WithError(err).Error("rpc status server exited")
		}
	}()

	supervisor := ptpd.NewSupervisor(clock)
	supervisor.Run(nil)
	return nil
}

// clockIdentity derives an 8-byte clock identity either from the
// configured hex string or, if unset, a random EUI-64-shaped value —
// acceptable for a single-domain lab deployment, not for interoperating
// with a fleet that expects MAC-derived identities.
func clockIdentity(configured string) (wire.ClockIdentity, error) {
	var id wire.ClockIdentity
	if configured == "" {
		if _, err := rand.Read(id[:]); err != nil {
			return id, err
		}
		return id, nil
	}
	if len(configured) != 16 {
		return id, fmt.Errorf("clock_identity must be 16 hex characters, got %q", configured)
	}
	for i := 0; i < 8; i++ {
		var b byte
		if _, err := fmt.Sscanf(configured[i*2:i*2+2], "%02x", &b); err != nil {
			return id, fmt.Errorf("clock_identity: invalid hex at byte %d: %w", i, err)
		}
		id[i] = b
	}
	return id, nil
}
