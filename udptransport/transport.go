// Package udptransport implements the ptp.Transport collaborator over the
// IEEE 1588 Annex D UDP mapping: the event message channel on UDP/319 and
// the general message channel on UDP/320, each joined to the PTP primary
// multicast group on a named network interface, grounded on
// pkg/ntpal.listen/setupServer net.ListenUDP + ReadFrom/WriteTo style and
// generalized from one socket to the two PTP requires.
package udptransport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/AndrewLester/ptpal/ptp"
	"github.com/AndrewLester/ptpal/wire"
)

const (
	EventPort   = 319
	GeneralPort = 320

	// primaryMulticastGroup is the IEEE 1588 Annex D default multicast
	// destination for PTP over UDP (224.0.1.129).
	primaryMulticastGroup = "224.0.1.129"

	mtu = 1500
)

// Transport is the concrete ptp.Transport: one UDP socket per channel,
// both joined to the primary multicast group on the requested interface.
type Transport struct {
	mu    sync.Mutex
	byFD  map[int]*channel
}

type channel struct {
	conn       *net.UDPConn
	packetConn *ipv4.PacketConn
	fd         int
	event      bool
}

// New returns an empty Transport ready to Open ports on.
func New() *Transport {
	return &Transport{byFD: make(map[int]*channel)}
}

// Open joins both the event and general multicast channels on the named
// interface and returns their descriptors as FDA[FDFirstTransport:...].
func (t *Transport) Open(name string, ts ptp.TimestampMode) (ptp.FDA, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("udptransport: interface %s: %w", name, err)
	}

	event, err := t.openChannel(iface, EventPort, true, ts)
	if err != nil {
		return nil, err
	}
	general, err := t.openChannel(iface, GeneralPort, false, ts)
	if err != nil {
		event.conn.Close()
		return nil, err
	}

	t.mu.Lock()
	t.byFD[event.fd] = event
	t.byFD[general.fd] = general
	t.mu.Unlock()

	return ptp.FDA{event.fd, general.fd}, nil
}

func (t *Transport) openChannel(iface *net.Interface, port int, event bool, ts ptp.TimestampMode) (*channel, error) {
	group := net.ParseIP(primaryMulticastGroup)
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("udptransport: listen :%d: %w", port, err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("udptransport: join group on %s: %w", iface.Name, err)
	}

	fd, err := fileDescriptor(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if ts == ptp.TimestampHardware {
		if err := enableHardwareTimestamping(fd); err != nil {
			// Fall back to software timestamps; hardware capture is
			// an optimization, not a correctness requirement.
			_ = err
		}
	}

	return &channel{conn: conn, packetConn: pc, fd: fd, event: event}, nil
}

// fileDescriptor extracts the raw descriptor backing a *net.UDPConn so it
// can be placed in a Port's FDA and handed to an external unix.Poll loop.
func fileDescriptor(conn *net.UDPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	ctrlErr := raw.Control(func(s uintptr) { fd = int(s) })
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}

// enableHardwareTimestamping requests SO_TIMESTAMPING on the socket. Send
// and Recv do not read the kernel's timestamps back; both stamp messages
// with time.Now().
func enableHardwareTimestamping(fd int) error {
	flags := unix.SOF_TIMESTAMPING_RX_HARDWARE |
		unix.SOF_TIMESTAMPING_TX_HARDWARE |
		unix.SOF_TIMESTAMPING_RAW_HARDWARE |
		unix.SOF_TIMESTAMPING_SOFTWARE
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPING, flags)
}

// Close tears down both channels.
func (t *Transport) Close(fda ptp.FDA) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for _, fd := range fda {
		ch, ok := t.byFD[fd]
		if !ok {
			continue
		}
		if err := ch.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(t.byFD, fd)
	}
	return firstErr
}

// Send encodes msg and writes it to the appropriate multicast channel,
// capturing an egress timestamp into msg.HWTS when eventChannel requests
// it.
func (t *Transport) Send(fda ptp.FDA, eventChannel bool, msg *wire.Message) (int, error) {
	ch := t.channelFor(fda, eventChannel)
	if ch == nil {
		return 0, fmt.Errorf("udptransport: no channel for send (event=%v)", eventChannel)
	}

	raw, err := wire.Encode(msg)
	if err != nil {
		return 0, err
	}

	group := net.ParseIP(primaryMulticastGroup)
	dest := &net.UDPAddr{IP: group, Port: ch.portNumber()}

	now := time.Now()
	n, err := ch.conn.WriteTo(raw, dest)
	if err != nil {
		return n, err
	}
	if eventChannel {
		msg.HWTS = wire.HWTimestamp{Seconds: now.Unix(), Nanoseconds: int32(now.Nanosecond())}
	}
	return n, nil
}

func (c *channel) portNumber() int {
	if c.event {
		return EventPort
	}
	return GeneralPort
}

func (t *Transport) channelFor(fda ptp.FDA, event bool) *channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, fd := range fda {
		if ch, ok := t.byFD[fd]; ok && ch.event == event {
			return ch
		}
	}
	return nil
}

// Recv reads one datagram off fd, decodes it, and stamps it with the
// capture time used by ForeignClock's currency rule.
func (t *Transport) Recv(fd int, ts ptp.TimestampMode) (*wire.Message, error) {
	t.mu.Lock()
	ch, ok := t.byFD[fd]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("udptransport: unknown descriptor %d", fd)
	}

	buf := make([]byte, mtu)
	n, _, err := ch.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	msg := wire.Allocate()
	if err := wire.Decode(buf[:n], msg); err != nil {
		// A malformed frame is not a transport failure: return the message anyway, with no Body, so
		// Codec.PostRecv rejects it and the dispatcher yields NONE
		// rather than FAULT_DETECTED.
		msg.Body = nil
	}
	msg.HWTS = wire.HWTimestamp{Seconds: now.Unix(), Nanoseconds: int32(now.Nanosecond())}
	msg.SourceAddr = ch.conn.LocalAddr().String()
	return msg, nil
}
