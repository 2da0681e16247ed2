package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/race"
	"github.com/neboloop/wikirace/internal/svc"
)

var (
	raceTimeout   time.Duration
	raceHeadful   bool
	flavorTimeout = 20 * time.Second
)

// RaceCmd runs an agent-only race from the terminal.
func RaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race <start> <target>",
		Short: "Watch the agent race between two articles",
		Long: `Runs a race with no human player. The agent navigates a real browser
from the start article to the target article and each step is printed as it
happens. The race ends when the agent arrives, gives up, or --timeout passes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRace(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().DurationVar(&raceTimeout, "timeout", 5*time.Minute, "give up after this long")
	cmd.Flags().BoolVar(&raceHeadful, "show", false, "show the browser window")
	return cmd
}

func runRace(parent context.Context, start, target string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step output goes to stdout; keep the log out of it unless asked.
	if !verbose {
		logging.Disable()
		defer logging.Enable()
	}

	c := *ServerConfig
	if raceHeadful {
		c.Browser.Headless = "false"
	}
	svcCtx, err := svc.NewServiceContext(c)
	if err != nil {
		return err
	}
	go svcCtx.Game.Run(ctx)

	updates := make(chan race.Snapshot, 16)
	unsubscribe := svcCtx.Game.Subscribe(func(snap race.Snapshot) {
		select {
		case updates <- snap:
		default:
		}
	})
	defer unsubscribe()

	fmt.Printf("Racing %s -> %s\n", start, target)
	if err := svcCtx.Game.Start(ctx, start, target); err != nil {
		return fmt.Errorf("start race: %w", err)
	}

	deadline := time.NewTimer(raceTimeout)
	defer deadline.Stop()

	printed := 0
	for {
		select {
		case snap := <-updates:
			for ; printed < len(snap.AgentPath); printed++ {
				step := snap.AgentPath[printed]
				fmt.Printf("%3d. %s\n", printed+1, step.Label)
			}
			if snap.Outcome != nil {
				return printOutcome(ctx, svcCtx, snap)
			}
		case <-deadline.C:
			fmt.Println("Time is up.")
			snap, err := svcCtx.Game.Complete(ctx)
			if err != nil {
				return err
			}
			return printOutcome(ctx, svcCtx, snap)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// printOutcome waits briefly for the final commentary, then prints the verdict.
func printOutcome(ctx context.Context, svcCtx *svc.ServiceContext, snap race.Snapshot) error {
	waitCtx, cancel := context.WithTimeout(ctx, flavorTimeout)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
wait:
	for snap.Outcome.FlavorProvisional {
		select {
		case <-waitCtx.Done():
			break wait
		case <-ticker.C:
			if s, err := svcCtx.Game.Snapshot(waitCtx); err == nil && s.Outcome != nil {
				snap = s
			}
		}
	}

	o := snap.Outcome
	fmt.Println()
	fmt.Printf("Winner: %s (%s)\n", o.Winner, o.Reason)
	fmt.Printf("Agent steps: %d, reached target: %v\n", o.AgentSteps, o.AgentReached)
	if o.FlavorText != "" {
		fmt.Println()
		fmt.Println(o.FlavorText)
	}
	return nil
}
