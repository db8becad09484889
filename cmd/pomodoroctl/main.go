// Command pomodoroctl is a thin client for a running pomodorod server: one
// subcommand per protocol.Kind, rendering the returned snapshot with
// fatih/color the way the teacher's internal/ui/colors.go colors timer
// state, replacing its hand-rolled ANSI escape constants.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kubaliski/cycletimer/client"
	"github.com/kubaliski/cycletimer/protocol"
	"github.com/kubaliski/cycletimer/transport/tcp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:   "pomodoroctl",
		Short: "Control a running cycle timer server",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:7733", "server TCP address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "per-call timeout")

	newClient := func() *client.Client {
		return client.New(tcp.Connector{Addr: addr}, timeout)
	}

	simple := func(use, short string, call func(*client.Client, context.Context) (protocol.Response, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := call(newClient(), cmd.Context())
				if err != nil {
					return err
				}
				return render(resp)
			},
		}
	}

	root.AddCommand(
		simple("start", "Start the timer", func(c *client.Client, ctx context.Context) (protocol.Response, error) { return c.Start(ctx) }),
		simple("pause", "Pause the timer", func(c *client.Client, ctx context.Context) (protocol.Response, error) { return c.Pause(ctx) }),
		simple("resume", "Resume the timer", func(c *client.Client, ctx context.Context) (protocol.Response, error) { return c.Resume(ctx) }),
		simple("stop", "Stop the timer", func(c *client.Client, ctx context.Context) (protocol.Response, error) { return c.Stop(ctx) }),
		simple("get", "Show the current snapshot", func(c *client.Client, ctx context.Context) (protocol.Response, error) { return c.Get(ctx) }),
		simple("stats", "Show session statistics", func(c *client.Client, ctx context.Context) (protocol.Response, error) { return c.Stats(ctx) }),
	)

	setDuration := &cobra.Command{
		Use:   "set-duration <seconds>",
		Short: "Replace the current cycle's duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var seconds uint32
			if _, err := fmt.Sscanf(args[0], "%d", &seconds); err != nil {
				return fmt.Errorf("invalid seconds %q: %w", args[0], err)
			}
			resp, err := newClient().SetDuration(cmd.Context(), seconds)
			if err != nil {
				return err
			}
			return render(resp)
		},
	}
	root.AddCommand(setDuration)

	return root
}

func render(resp protocol.Response) error {
	if !resp.Ok {
		fmt.Println(color.RedString("error [%s]: %s", resp.Error.Code, resp.Error.Message))
		return nil
	}
	if s := resp.Snapshot; s != nil {
		stateColor := colorForState(s.State)
		fmt.Printf("%s  cycle=%s  elapsed=%ds/%ds  loop=%s\n",
			stateColor(s.State), s.CycleName, s.ElapsedSeconds, s.CycleDuration, loopString(s))
	}
	if resp.Stats != nil {
		st := resp.Stats
		fmt.Printf("%s streak=%d best=%d active=%s\n",
			color.CyanString("stats:"), st.CurrentStreak, st.BestStreak, time.Duration(st.ActiveSeconds)*time.Second)
		for name, n := range st.Completed {
			fmt.Printf("  %s completed=%d skipped=%d\n", name, n, st.Skipped[name])
		}
	}
	return nil
}

func loopString(s *protocol.SnapshotView) string {
	if s.LoopKind == "fixed" {
		return fmt.Sprintf("fixed(%d remaining)", s.LoopRemaining)
	}
	return "infinite"
}

func colorForState(state string) func(string, ...interface{}) string {
	switch state {
	case "running":
		return color.GreenString
	case "paused":
		return color.YellowString
	default:
		return color.New(color.FgWhite).SprintfFunc()
	}
}
