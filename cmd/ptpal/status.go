package main

import (
	"fmt"
	"log"
	"net/rpc"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AndrewLester/ptpal/internal/ui"
	"github.com/AndrewLester/ptpal/ptp"
	"github.com/AndrewLester/ptpal/ptpd"
)

// formatStats renders the Announce/Sync/Delay_Req/Delay_Resp counters
// most useful for eyeballing whether a port is actually exchanging
// messages, rather than dumping all 16 message-type slots.
func formatStats(s ptp.Stats) string {
	return fmt.Sprintf(
		"A %d/%d Sy %d/%d DReq %d/%d DResp %d/%d",
		s.RxMsgType[0xb], s.TxMsgType[0xb],
		s.RxMsgType[0x0], s.TxMsgType[0x0],
		s.RxMsgType[0x1], s.TxMsgType[0x1],
		s.RxMsgType[0x9], s.TxMsgType[0x9],
	)
}

const defaultSocket = "/var/run/ptpal.sock"
const fetchInfoPeriod = 5 * time.Second

func newStatusCommand() *cobra.Command {
	var socket string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a live view of every port's state",
		Run: func(cmd *cobra.Command, args []string) {
			m := statusModel{socket: socket, table: setupPortTable()}
			if _, err := tea.NewProgram(m).Run(); err != nil {
				log.Fatal(err)
			}
		},
	}

	cmd.Flags().StringVar(&socket, "socket", defaultSocket, "Path to the ptpal RPC socket.")
	return cmd
}

type statusModel struct {
	socket string
	table  table.Model
	ports  []ptpd.PortStatus

	daemonKillStatus string
}

var rpcClient *rpc.Client

type dialSocketMessage *rpc.Client
type fetchPortsMessage []ptpd.PortStatus
type tickMsg time.Time

func dialSocketCommand(m statusModel) tea.Cmd {
	return func() tea.Msg {
		client, err := rpc.Dial("unix", m.socket)
		if err != nil {
			log.Fatalf("Error connecting to ptpal daemon: %v", err)
		}
		return dialSocketMessage(client)
	}
}

func fetchPortsCommand() tea.Cmd {
	return func() tea.Msg {
		var ports []ptpd.PortStatus
		if err := rpcClient.Call("StatusServer.FetchPorts", 0, &ports); err != nil {
			log.Fatalf("Error getting status from daemon: %v", err)
		}
		return fetchPortsMessage(ports)
	}
}

func stopDaemonCommand() tea.Cmd {
	return func() tea.Msg {
		killDaemon()
		return nil
	}
}

func tickCommand(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m statusModel) Init() tea.Cmd {
	return dialSocketCommand(m)
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if m.table.Focused() {
				m.table.Blur()
			} else {
				m.table.Focus()
			}
		case "stop", "s":
			m.daemonKillStatus = "Stopping ptpald"
			return m, tea.Sequence(stopDaemonCommand(), tea.Quit)
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	case dialSocketMessage:
		rpcClient = msg
		return m, tickCommand(0)
	case fetchPortsMessage:
		m.ports = msg
		rows := []table.Row{}
		for _, p := range m.ports {
			rows = append(rows, table.Row{p.Name, p.State, formatStats(p.Stats)})
		}
		m.table.SetRows(rows)
		return m, nil
	case tickMsg:
		return m, tea.Batch(tickCommand(fetchInfoPeriod), fetchPortsCommand())
	default:
		return m, nil
	}
}

func (m statusModel) View() (s string) {
	s += ui.Title("ptpal") + "\n"
	s += ui.TableBase(m.table.View()) + "\n\n"
	if m.daemonKillStatus != "" {
		s += m.daemonKillStatus + "\n"
	} else {
		s += ui.Help("q: exit, s: stop daemon") + "\n"
	}
	return
}

func setupPortTable() table.Model {
	columns := []table.Column{
		{Title: "Interface", Width: 16},
		{Title: "State", Width: 16},
		{Title: "Rx/Tx", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(7),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ui.TableGray).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("218")).
		Background(lipgloss.Color("70")).
		Bold(false)
	t.SetStyles(s)

	return t
}
