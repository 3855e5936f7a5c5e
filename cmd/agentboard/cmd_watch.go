package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/agentboard/internal/client"
	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/filter"
)

// watchConfig holds configuration for the watch command.
type watchConfig struct {
	server    string
	transport string
	filter    string
	json      bool
}

// newWatchCmd creates the "agentboard watch" subcommand.
func newWatchCmd() *cobra.Command {
	var cfg watchConfig

	cmd := &cobra.Command{
		Use:   "watch <project-id>",
		Short: "Follow a project's live event stream",
		Long: "Connects to the event stream like a dashboard does, reconnecting with backoff,\n" +
			"and prints hook events, activity and board changes as they arrive.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(os.Stderr)

			f, err := filter.Compile(cfg.filter)
			if err != nil {
				return err
			}
			dialer, err := newDialer(cfg, args[0])
			if err != nil {
				return err
			}

			return watch(cmd, dialer, f, cfg.json)
		},
	}

	cmd.Flags().StringVar(&cfg.server, "server", "http://localhost:8080", "agentboard server base URL")
	cmd.Flags().StringVar(&cfg.transport, "transport", "sse", "stream transport: sse or ws")
	cmd.Flags().StringVar(&cfg.filter, "filter", "", `expression selecting events, e.g. 'status == "failure"'`)
	cmd.Flags().BoolVar(&cfg.json, "json", false, "print raw stream messages as JSON lines")

	return cmd
}

func watch(cmd *cobra.Command, dialer client.Dialer, f *filter.Filter, raw bool) error {
	out := &printer{w: cmd.OutOrStdout(), raw: raw}

	m := client.New(dialer)
	m.Dispatcher().OnAny(func(msg domain.Message) error {
		msg, keep, err := f.Apply(msg)
		if err != nil || !keep {
			return err
		}
		return out.print(msg)
	})

	fatal := make(chan error, 1)
	m.OnStateChange(func(state client.ConnectionState, err error) {
		ev := log.Info().Str("state", string(state)).Int("attempt", m.Attempts())
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("watch: connection")

		if state == client.StateError {
			select {
			case fatal <- err:
			default:
			}
		}
	})

	m.SetEnabled(true)
	defer m.Close()

	select {
	case <-cmd.Context().Done():
		return nil
	case err := <-fatal:
		return fmt.Errorf("watch: %w", err)
	}
}

func newDialer(cfg watchConfig, projectID string) (client.Dialer, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("project id is required")
	}
	target, err := streamURL(cfg.server, cfg.transport, projectID)
	if err != nil {
		return nil, err
	}

	switch cfg.transport {
	case "ws":
		return &client.WebSocketDialer{URL: target}, nil
	default:
		header := http.Header{}
		header.Set("X-Request-ID", uuid.NewString())
		return &client.HTTPDialer{URL: target, Header: header}, nil
	}
}

// streamURL derives the stream endpoint for a project from the server base URL.
func streamURL(base, transport, projectID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("server url must be http or https, got %q", base)
	}

	path := strings.TrimSuffix(u.Path, "/")
	switch transport {
	case "sse":
		u.Path = path + "/api/v1/events/" + projectID
	case "ws":
		u.Path = path + "/ws/events/" + projectID
		if u.Scheme == "https" {
			u.Scheme = "wss"
		} else {
			u.Scheme = "ws"
		}
	default:
		return "", fmt.Errorf("unknown transport %q (want sse or ws)", transport)
	}
	return u.String(), nil
}

// printer writes one line per event. Dispatch may run on transport
// goroutines, so writes are serialized.
type printer struct {
	mu  sync.Mutex
	w   io.Writer
	raw bool
}

func (p *printer) print(msg domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.raw {
		line, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "%s\n", line)
		return err
	}

	switch msg.Type {
	case domain.MessageHookEvent:
		batch, err := domain.DecodeOneOrMany[domain.HookEventSummary](msg.Data)
		if err != nil {
			return err
		}
		for _, e := range batch {
			tool := "-"
			if e.ToolName != nil {
				tool = *e.ToolName
			}
			duration := ""
			if e.DurationMs != nil {
				duration = fmt.Sprintf(" %dms", *e.DurationMs)
			}
			fmt.Fprintf(p.w, "%s  %-14s %-12s %-22s %-8s %s%s\n",
				clock(e.Timestamp), msg.Type, e.AgentName, e.EventType, e.Status, tool, duration)
		}
	case domain.MessageActivityEntry:
		batch, err := domain.DecodeOneOrMany[domain.LogEntry](msg.Data)
		if err != nil {
			return err
		}
		for _, e := range batch {
			fmt.Fprintf(p.w, "%s  %-14s %-12s %-5s %s\n",
				clock(e.Timestamp), msg.Type, e.AgentName, e.Level, e.Message)
		}
	default:
		fmt.Fprintf(p.w, "%s  %-14s %s\n", clock(msg.Timestamp), msg.Type, msg.Data)
	}
	return nil
}

func clock(t time.Time) string {
	return t.Local().Format("15:04:05.000")
}
