package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aura/internal/aura"
	"aura/internal/history"
)

// Exit codes (spec §6).
const (
	exitOK             = 0
	exitMisuse         = 2
	exitNoCredentials  = 3
	exitInternal       = 4
)

var (
	configPath  string
	debugFlag   bool
	traceFlag   bool
	metricsAddr string
	yesFlag     bool

	historyTool         string
	historyFailuresOnly bool
	historyLimit        int
)

var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "AURA is a hybrid local/LLM desktop assistant",
	Long: "AURA routes spoken or typed commands through a fast local intent " +
		"router first, falling back to code generation, planning, or a " +
		"conversational LLM only when the local layer can't handle them.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", false, "print OpenTelemetry spans to stdout")

	runCmd.Flags().BoolVar(&yesFlag, "yes", false, "pre-confirm any ConfirmationRequired tool call")
	chatCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (e.g. :9090)")

	historyCmd.Flags().StringVar(&historyTool, "tool", "", "only show invocations of this tool")
	historyCmd.Flags().BoolVar(&historyFailuresOnly, "failures", false, "only show failed invocations")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries to show")

	capsCmd.AddCommand(capsListCmd, capsPromoteCmd, capsRevokeCmd)
	toolsCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(runCmd, chatCmd, toolsCmd, capsCmd, historyCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <utterance>",
	Short: "Process a single utterance and print the response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}
		defer cleanup()

		text := strings.Join(args, " ")
		u := aura.Utterance{ID: nextUtteranceID(), Text: text, Source: aura.SourceText}
		if yesFlag {
			// A pre-confirmed run still goes through the normal pipeline;
			// an immediate follow-up utterance supplies the affirmative
			// token the Orchestrator's confirmation protocol expects.
			resp := app.Orchestrator.Process(cmd.Context(), u, app.Session)
			if !resp.OK && resp.Err != nil && resp.Err.Kind == aura.ErrConfirmationNeeded {
				resp = app.Orchestrator.Process(cmd.Context(), aura.Utterance{ID: nextUtteranceID(), Text: "yes", Source: aura.SourceText}, app.Session)
			}
			return printResponse(resp)
		}

		resp := app.Orchestrator.Process(cmd.Context(), u, app.Session)
		return printResponse(resp)
	},
}

// printResponse writes the Response text to stdout/stderr and exits the
// process with the spec §6 exit code matching its error kind.
func printResponse(resp aura.Response) error {
	if resp.OK {
		fmt.Println(resp.Text)
		os.Exit(exitOK)
	}

	fmt.Fprintln(os.Stderr, resp.Text)
	if resp.Err == nil {
		os.Exit(exitInternal)
	}
	switch resp.Err.Kind {
	case aura.ErrNoCredentials:
		os.Exit(exitNoCredentials)
	case aura.ErrBadArgs, aura.ErrUnknownTool, aura.ErrUnsupported, aura.ErrConfirmationNeeded:
		os.Exit(exitMisuse)
	default:
		os.Exit(exitInternal)
	}
	return nil
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session, reading utterances from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}
		defer cleanup()

		if metricsAddr != "" {
			stopMetrics := serveMetrics(metricsAddr, app.Session)
			defer stopMetrics()
		}

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Printf("%s ready. Type a command, or Ctrl-D to exit.\n", app.Cfg.AssistantName)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}
			u := aura.Utterance{ID: nextUtteranceID(), Text: line, Source: aura.SourceText}
			resp := app.Orchestrator.Process(cmd.Context(), u, app.Session)
			if resp.OK {
				fmt.Println(resp.Text)
			} else if resp.Err != nil {
				fmt.Printf("error (%s): %s\n", resp.Err.Kind, resp.Text)
			}
		}
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the built-in tool registry",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}
		defer cleanup()

		for _, t := range app.Registry.Snapshot() {
			fmt.Printf("%-20s [%s] %s\n", t.Name, t.RiskLevel, t.Description)
		}
		return nil
	},
}

var capsCmd = &cobra.Command{
	Use:   "caps",
	Short: "Inspect and manage promoted capabilities",
}

var capsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List promoted capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}
		defer cleanup()

		for _, c := range app.Caps.List() {
			fmt.Printf("%-20s -> %-20s triggers=%v\n", c.Name, c.ToolName, c.Triggers)
		}
		return nil
	},
}

var capsPromoteCmd = &cobra.Command{
	Use:   "promote <name> <tool> <trigger...>",
	Short: "Promote a generated routine to a first-class capability",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}
		defer cleanup()

		newCap := aura.Capability{
			Name:      args[0],
			ToolName:  args[1],
			Triggers:  args[2:],
			Source:    aura.CapabilityPromoted,
			CreatedAt: time.Now(),
		}
		if err := app.Caps.Promote(newCap); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitMisuse)
		}
		fmt.Printf("promoted %s\n", newCap.Name)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Search previously processed utterances",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}
		defer cleanup()

		if app.History == nil {
			fmt.Fprintln(os.Stderr, "history index unavailable")
			os.Exit(exitInternal)
		}

		var entries []history.Entry
		switch {
		case historyFailuresOnly:
			entries, err = app.History.Failures(historyLimit)
		case historyTool != "":
			entries, err = app.History.SearchByTool(historyTool, historyLimit)
		default:
			entries, err = app.History.Recent(historyLimit)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}

		for _, e := range entries {
			status := "ok"
			if !e.OK {
				status = "FAIL:" + e.Error
			}
			fmt.Printf("%s [%s/%s] %-6s %q (%dms)\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Layer, e.Tool, status, e.Utterance, e.ElapsedMs)
		}
		return nil
	},
}

var capsRevokeCmd = &cobra.Command{
	Use:   "revoke <name>",
	Short: "Revoke a promoted capability",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInternal)
		}
		defer cleanup()

		if err := app.Caps.Revoke(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitMisuse)
		}
		fmt.Printf("revoked %s\n", args[0])
		return nil
	},
}
