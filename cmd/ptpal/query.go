package main

import (
	"fmt"
	"net/rpc"
	"os"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/internal/sugar"
	"github.com/AndrewLester/ptpal/internal/ui"
)

func newQueryCommand() *cobra.Command {
	var socket string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the best foreign master currently qualified on each port",
		Run: func(cmd *cobra.Command, args []string) {
			m := queryModel{socket: socket}
			if _, err := sugar.RunProgramWithErrors(m); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&socket, "socket", defaultSocket, "Path to the ptpal RPC socket.")
	return cmd
}

type queryModel struct {
	socket  string
	masters map[string]bmc.Dataset
	err     error
	done    bool
}

type queryResultMessage map[string]bmc.Dataset
type queryErrorMessage error

func queryCommand(socket string) tea.Cmd {
	return func() tea.Msg {
		client, err := rpc.Dial("unix", socket)
		if err != nil {
			return queryErrorMessage(err)
		}
		defer client.Close()

		var masters map[string]bmc.Dataset
		if err := client.Call("StatusServer.FetchForeignMasters", 0, &masters); err != nil {
			return queryErrorMessage(err)
		}
		return queryResultMessage(masters)
	}
}

func (m queryModel) Init() tea.Cmd {
	return queryCommand(m.socket)
}

func (m queryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, tea.Quit
	case queryResultMessage:
		m.masters = msg
		m.done = true
		return m, tea.Quit
	case queryErrorMessage:
		m.err = msg
		m.done = true
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m queryModel) View() (s string) {
	if m.err != nil {
		return
	}
	if !m.done {
		s += ui.Title("ptpal - query") + "\n"
		return
	}

	names := make([]string, 0, len(m.masters))
	for name := range m.masters {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		s += "no port currently has a qualified foreign master\n"
		return
	}

	for _, name := range names {
		ds := m.masters[name]
		s += fmt.Sprintf(
			"%s: grandmaster=%s priority1=%d priority2=%d steps_removed=%d\n",
			name, ds.GrandmasterIdentity, ds.Priority1, ds.Priority2, ds.StepsRemoved,
		)
	}
	return
}

func (m queryModel) GetError() error {
	return m.err
}
