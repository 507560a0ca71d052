// Package combatctl is the command-line driver for the story combat API.
package combatctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	entrypoint "github.com/louisbranch/fulcrum/internal/platform/cmd"
	"github.com/louisbranch/fulcrum/internal/platform/discovery"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	storyapi "github.com/louisbranch/fulcrum/internal/services/story/api/http"
	"github.com/louisbranch/fulcrum/internal/services/story/combat"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/httpjson"
)

// Config holds combatctl configuration read from the environment.
type Config struct {
	StoryURL string        `env:"FULCRUM_STORY_URL"`
	Timeout  time.Duration `env:"FULCRUM_COMBATCTL_TIMEOUT" envDefault:"30s"`
}

// ParseConfig loads the environment into a Config.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.StoryURL = discovery.OrDefaultHTTPBaseURL(cfg.StoryURL, discovery.ServiceStory)
	return cfg, nil
}

// Execute runs combatctl with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := ParseConfig()
	if err != nil {
		fmt.Fprintf(stderr, "combatctl: %v\n", err)
		return apperrors.ExitCode(err)
	}
	root := NewRootCommand(cfg)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCombatCtl, root.ExecuteContext)
	if err != nil {
		fmt.Fprintf(stderr, "combatctl: %v\n", err)
	}
	return apperrors.ExitCode(err)
}

type cli struct {
	url     string
	timeout time.Duration
	json    bool
}

// NewRootCommand builds the combatctl command tree.
func NewRootCommand(cfg Config) *cobra.Command {
	c := &cli{url: cfg.StoryURL, timeout: cfg.Timeout}
	root := &cobra.Command{
		Use:           "combatctl",
		Short:         "Drive encounters on the story service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.url, "url", c.url, "story service base URL (FULCRUM_STORY_URL)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", c.timeout, "deadline for each request")
	root.PersistentFlags().BoolVar(&c.json, "json", false, "print raw JSON responses")

	root.AddCommand(c.startCommand(), c.actCommand(), c.stepCommand(), c.showCommand(), c.abortCommand())
	return root
}

func (c *cli) client() (*httpjson.Client, error) {
	hc, err := httpjson.New("story", c.url, httpjson.WithTimeout(c.timeout))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "story url", err)
	}
	return hc, nil
}

func encounterPath(id string, rest ...string) string {
	return strings.Join(append([]string{"/v1/combat", httpjson.PathEscape(id)}, rest...), "/")
}

func (c *cli) startCommand() *cobra.Command {
	var req storyapi.StartRequest
	cmd := &cobra.Command{
		Use:     "start",
		Short:   "Start an encounter",
		Example: "  combatctl start --location cave --player player_1 --player player_2 --npc goblin",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hc, err := c.client()
			if err != nil {
				return err
			}
			var started combat.Started
			if err := hc.Post(cmd.Context(), "/v1/combat/start", req, &started); err != nil {
				return err
			}
			if c.json {
				return printJSON(cmd.OutOrStdout(), started)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "encounter %s started at %s\n", started.Encounter.ID, started.Encounter.LocationID)
			printLog(out, started.Log)
			fmt.Fprintf(out, "next: %s\n", started.Next)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.LocationID, "location", "", "location id")
	cmd.Flags().StringSliceVar(&req.PlayerIDs, "player", nil, "player actor id, repeatable")
	cmd.Flags().StringSliceVar(&req.NPCTemplateIDs, "npc", nil, "NPC template id, repeatable")
	return cmd
}

func (c *cli) actCommand() *cobra.Command {
	var req storyapi.ActionRequest
	cmd := &cobra.Command{
		Use:     "act <encounter-id>",
		Short:   "Submit the current player's action",
		Example: "  combatctl act 7f3c --actor player_1 --action attack --target npc_2",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hc, err := c.client()
			if err != nil {
				return err
			}
			var result combat.Result
			if err := hc.Post(cmd.Context(), encounterPath(args[0], "player_action"), req, &result); err != nil {
				return err
			}
			return c.printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&req.ActorID, "actor", "", "acting player id")
	cmd.Flags().StringVar(&req.Action, "action", "attack", "action name")
	cmd.Flags().StringVar(&req.TargetID, "target", "", "target actor id")
	cmd.Flags().StringVar(&req.AbilityID, "ability", "", "ability id")
	cmd.Flags().StringVar(&req.ItemID, "item", "", "item id")
	return cmd
}

func (c *cli) stepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "step <encounter-id>",
		Short: "Play exactly one NPC turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hc, err := c.client()
			if err != nil {
				return err
			}
			var result combat.Result
			if err := hc.Post(cmd.Context(), encounterPath(args[0], "npc_action"), nil, &result); err != nil {
				return err
			}
			return c.printResult(cmd.OutOrStdout(), result)
		},
	}
}

func (c *cli) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <encounter-id>",
		Short: "Print an encounter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hc, err := c.client()
			if err != nil {
				return err
			}
			var enc domain.Encounter
			if err := hc.Get(cmd.Context(), encounterPath(args[0]), &enc); err != nil {
				return err
			}
			if c.json {
				return printJSON(cmd.OutOrStdout(), enc)
			}
			printEncounter(cmd.OutOrStdout(), enc)
			return nil
		},
	}
}

func (c *cli) abortCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "abort <encounter-id>",
		Short: "End an encounter without a winner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hc, err := c.client()
			if err != nil {
				return err
			}
			var enc domain.Encounter
			if err := hc.Post(cmd.Context(), encounterPath(args[0], "abort"), nil, &enc); err != nil {
				return err
			}
			if c.json {
				return printJSON(cmd.OutOrStdout(), enc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "encounter %s %s\n", enc.ID, enc.Status)
			return nil
		},
	}
}

// printResult prints a turn result. A rejected action is reported as a
// precondition failure so scripts see exit code 2.
func (c *cli) printResult(out io.Writer, result combat.Result) error {
	if c.json {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		printLog(out, result.Log)
		if result.CombatOver {
			fmt.Fprintf(out, "combat over: %s\n", result.Status)
		} else {
			fmt.Fprintf(out, "turn %d, next: %s\n", result.NewTurnIndex, result.Next)
		}
	}
	if !result.Success {
		return apperrors.Newf(apperrors.CodePrecondition, "action rejected: %s (%s)", result.Message, result.Reason)
	}
	return nil
}

func printLog(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintf(out, "  %s\n", line)
	}
}

func printEncounter(out io.Writer, enc domain.Encounter) {
	fmt.Fprintf(out, "encounter %s at %s: %s\n", enc.ID, enc.LocationID, enc.Status)
	initiative := make(map[domain.ActorID]int, len(enc.Participants))
	for _, p := range enc.Participants {
		initiative[p.ActorID] = p.Initiative
	}
	for i, id := range enc.TurnOrder {
		marker := " "
		if i == enc.CurrentTurnIndex && !enc.Status.Terminal() {
			marker = ">"
		}
		fmt.Fprintf(out, "%s %d. %s (initiative %d)\n", marker, i+1, id, initiative[id])
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
