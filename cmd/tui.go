// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/bwactl/internal/backoff"
	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/client"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"control"},
	Short:   "Interactive spa dashboard and remote control",
	Long: `Show the live state of the spa and operate it from the keyboard.

Keys:
  1-6      cycle pump speed        l/L  toggle light 1/2
  a/A      toggle aux 1/2          b    cycle blower
  m        toggle mister           h    toggle hold
  r        toggle temperature range
  e        switch heating mode between ready and rest
  s        switch temperature scale
  c        set the spa clock to local time
  t        edit target temperature (enter to send, esc to cancel)
  q        quit

The connection is re-established with exponential backoff when it drops.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// connectionManager owns the session and replaces it when it fails
type connectionManager struct {
	mu       sync.Mutex
	c        *client.Client
	connInfo string
	p        *tea.Program
}

func (cm *connectionManager) getClient() *client.Client {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.c
}

func (cm *connectionManager) setClient(c *client.Client, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.c = c
	cm.connInfo = connInfo
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	c, connInfo, err := OpenClient(ctx, nil)
	if err != nil {
		return err
	}
	cm := &connectionManager{c: c, connInfo: connInfo}

	m := initialControlModel(cm, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	cm.p = p

	go cm.readerLoop(ctx)

	_, err = p.Run()
	cancel()
	if cur := cm.getClient(); cur != nil {
		cur.Close()
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// readerLoop polls the current session and reconnects when it fails
func (cm *connectionManager) readerLoop(ctx context.Context) {
	for {
		c := cm.getClient()
		if err := c.RequestAll(); err != nil {
			logging.Warn("Failed to request configuration", zap.Error(err))
		}

		err := readFrames(ctx, c, func(p *bwa.Packet, m bwa.Message, decodeErr error) {
			switch v := m.(type) {
			case bwa.Status, bwa.ControlConfiguration, bwa.ControlConfiguration2, bwa.FilterCycles, bwa.Configuration:
				cm.p.Send(stateMsg{state: c.Snapshot()})
			case bwa.Error:
				cm.p.Send(eventMsg{text: v.String(), isError: true})
			}
			if decodeErr != nil {
				cm.p.Send(eventMsg{text: decodeErr.Error(), isError: true})
			}
		})
		c.Close()
		if ctx.Err() != nil {
			return
		}
		cm.p.Send(connectionLostMsg{err: err})

		if !cm.reconnect(ctx) {
			return // Shutdown requested during reconnect
		}
	}
}

// reconnect retries with exponential backoff. Returns false if shutdown was
// requested.
func (cm *connectionManager) reconnect(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		if err := backoff.Sleep(ctx, backoff.Delay(backoff.Reconnect, attempt, nil)); err != nil {
			return false
		}

		c, connInfo, err := OpenClient(ctx, nil)
		if err != nil {
			logging.Debug("Reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		cm.setClient(c, connInfo)
		cm.p.Send(reconnectedMsg{connInfo: connInfo})
		return true
	}
}

// action runs fn against the current session off the UI goroutine
func (cm *connectionManager) action(what string, fn func(ctx context.Context, c *client.Client) error) tea.Cmd {
	return func() tea.Msg {
		c := cm.getClient()
		if c == nil {
			return actionResultMsg{what: what, err: fmt.Errorf("not connected")}
		}
		return actionResultMsg{what: what, err: fn(context.Background(), c)}
	}
}
