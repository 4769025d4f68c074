package ptpd

import (
	"errors"
	"net"
	"net/rpc"
	"os"

	"github.com/apex/log"

	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/clockserver"
	"github.com/AndrewLester/ptpal/ptp"
)

// StatusServer exposes each port's state and stats over net/rpc on a unix
// socket, kept from internal/rpc/rpc.go NTPalRPCServer,
// generalized from NTP associations to PTP ports and their foreign-master
// datasets.
type StatusServer struct {
	Socket string
	Clock  *clockserver.Clock
}

// PortStatus is one port's status snapshot, returned by FetchPorts.
type PortStatus struct {
	Name  string
	State string
	Stats ptp.Stats
}

// Listen registers the server and accepts connections until the process
// exits, matching Listen loop.
func (s *StatusServer) Listen() error {
	rpc.Register(s)

	if err := os.Remove(s.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	l, err := net.Listen("unix", s.Socket)
	if err != nil {
		return err
	}

	log.WithField("socket", s.Socket).Info("rpc status server listening")
	for {
		rpc.Accept(l)
	}
}

// FetchPorts returns every registered port's current state and stats.
func (s *StatusServer) FetchPorts(_ int, reply *[]PortStatus) error {
	var out []PortStatus
	for _, p := range s.Clock.Ports() {
		out = append(out, PortStatus{
			Name:  p.Name,
			State: p.State().String(),
			Stats: p.Stats(),
		})
	}
	*reply = out
	return nil
}

// FetchForeignMasters returns the best qualified dataset for every port
// that has one.
func (s *StatusServer) FetchForeignMasters(_ int, reply *map[string]bmc.Dataset) error {
	out := make(map[string]bmc.Dataset)
	for _, p := range s.Clock.Ports() {
		if ds, ok := p.BestForeign(); ok {
			out[p.Name] = ds
		}
	}
	*reply = out
	return nil
}
