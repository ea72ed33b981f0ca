package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miniagent-dev/core/internal/eventbus"
	"github.com/miniagent-dev/core/internal/orchestrator"
	"github.com/miniagent-dev/core/internal/sessionkey"
)

// buildChatCmd creates the "chat" command: the single interactive
// entry point into the runtime. --agent selects the agent identity;
// the first positional argument, if any, names the session.
func buildChatCmd() *cobra.Command {
	var configPath string
	var agentFlag string

	cmd := &cobra.Command{
		Use:   "chat [session]",
		Short: "Start an interactive chat session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionArg := ""
			if len(args) > 0 {
				sessionArg = args[0]
			}
			return runChat(cmd, configPath, agentFlag, sessionArg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&agentFlag, "agent", "a", "", "Agent id (default: "+envAgentID+" or config agent.id)")
	return cmd
}

func runChat(cmd *cobra.Command, configPath, agentFlag, sessionArg string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(resolveConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	agentID := resolveAgentID(agentFlag, cfg)
	logger := buildLogger(cfg)

	orch, bus, metrics, err := buildOrchestrator(cfg, agentID, logger)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	sessionID := sessionArg
	if sessionID == "" {
		sessionID = "default"
	}
	key := sessionkey.Resolve(agentID, sessionID)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	if cfg.Heartbeat.Enabled {
		runner := buildHeartbeatRunner(cfg, orch, agentID, metrics)
		runner.Start(ctx)
		defer runner.Stop()
	}

	repl := &chatREPL{
		out:    out,
		orch:   orch,
		bus:    bus,
		key:    key,
		reader: bufio.NewReader(cmd.InOrStdin()),
	}
	return repl.run(ctx)
}

// chatREPL owns one interactive session's read-eval-print loop:
// subscribing to the bus for live assistant/tool output and dispatching
// each line of input to either a slash command or the orchestrator.
type chatREPL struct {
	out    io.Writer
	orch   *orchestrator.Orchestrator
	bus    *eventbus.Bus
	key    sessionkey.Key
	reader *bufio.Reader
}

func (r *chatREPL) run(ctx context.Context) error {
	unsubscribe := r.bus.Subscribe(r.onEvent)
	defer unsubscribe()

	fmt.Fprintf(r.out, "miniagent chat — session %s. Type /help for commands.\n", r.key.String())

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "\ninterrupted")
			return nil
		default:
		}

		fmt.Fprint(r.out, "> ")
		line, err := r.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Built-in REPL commands are handled locally; any other
		// slash-prefixed input still goes to the orchestrator so skill
		// commands like "/review ..." get their rewrite.
		if strings.HasPrefix(line, "/") {
			handled, done, cmdErr := r.dispatchCommand(line)
			if cmdErr != nil {
				fmt.Fprintf(r.out, "error: %v\n", cmdErr)
			}
			if done {
				return nil
			}
			if handled {
				continue
			}
		}

		if _, err := r.orch.Run(ctx, r.key.AgentID, r.key.String(), line); err != nil {
			fmt.Fprintf(r.out, "\nerror: %v\n", err)
			continue
		}
		fmt.Fprintln(r.out)
	}
}

func (r *chatREPL) onEvent(e eventbus.Event) {
	if e.SessionKey != r.key.String() {
		return
	}
	switch e.Stream {
	case eventbus.StreamAssistant:
		if delta, ok := e.Data["delta"].(string); ok && delta != "" {
			fmt.Fprint(r.out, delta)
		}
	case eventbus.StreamTool:
		if e.Data["phase"] == "start" {
			fmt.Fprintf(r.out, "\n[tool] %v\n", e.Data["name"])
		}
	case eventbus.StreamSubagent:
		if summary, ok := e.Data["summary"].(string); ok {
			fmt.Fprintf(r.out, "\n[subagent] %s\n", summary)
		}
	case eventbus.StreamError:
		fmt.Fprintf(r.out, "\n[error] %v\n", e.Data["message"])
	}
}

func (r *chatREPL) dispatchCommand(line string) (handled, done bool, err error) {
	store := r.orch.SessionLog()

	switch line {
	case "/help":
		fmt.Fprintln(r.out, "commands: /help /reset /history /sessions /quit /exit")
		return true, false, nil
	case "/reset":
		if err := store.Clear(r.key.String()); err != nil {
			return true, false, err
		}
		fmt.Fprintln(r.out, "session cleared")
		return true, false, nil
	case "/history":
		entries, err := store.Load(r.key.String())
		if err != nil {
			return true, false, err
		}
		for _, e := range entries {
			fmt.Fprintf(r.out, "[%s] %s: %s\n", e.ID, e.Message.Role, e.Message.Text())
		}
		return true, false, nil
	case "/sessions":
		keys, err := store.List()
		if err != nil {
			return true, false, err
		}
		for _, k := range keys {
			fmt.Fprintln(r.out, k)
		}
		return true, false, nil
	case "/quit", "/exit":
		return true, true, nil
	default:
		return false, false, nil
	}
}
