package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/client"
	"github.com/andrearcaina/uofthacks-2026/internal/config"
	"github.com/andrearcaina/uofthacks-2026/internal/operation"
	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
)

type cli struct {
	cfg    config.Config
	logger *zap.Logger

	panelURL string
	token    string
	attempts int
	jsonOut  bool
	style    string
}

func newRootCmd(cfg config.Config, logger *zap.Logger) *cobra.Command {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &cli{cfg: cfg, logger: logger}

	root := &cobra.Command{
		Use:           "panel",
		Short:         "Run control panel operations for an installed store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(c.token) == "" {
				return errors.New("session token required (--token or PANEL_SESSION_TOKEN)")
			}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.panelURL, "panel-url", cfg.PanelURL, "base URL of the panel server")
	flags.StringVar(&c.token, "token", cfg.PanelSessionToken, "admin session token")
	flags.IntVar(&c.attempts, "attempts", cfg.RetryAttempts, "attempts per operation when the panel is unreachable")
	flags.BoolVar(&c.jsonOut, "json", false, "print the raw result payload as JSON")
	flags.StringVar(&c.style, "style", "auto", "markdown style (auto, dark, light, notty)")

	root.AddCommand(c.analyzeCmd(), c.compareCmd(), c.manifestoCmd(), c.campaignCmd())
	return root
}

func (c *cli) analyzeCmd() *cobra.Command {
	var url, prompt string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a piece of content against the brand",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"url": url}
			if prompt != "" {
				payload["prompt"] = prompt
			}
			return c.run(cmd, "analyze", proxy.Analyze, payload, "analysis")
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "content URL")
	cmd.Flags().StringVar(&prompt, "prompt", "", "extra instructions for the analysis")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (c *cli) compareCmd() *cobra.Command {
	var summary, manifesto string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a content summary with the brand manifesto",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"summary": summary}
			if manifesto != "" {
				payload["manifesto"] = manifesto
			}
			return c.run(cmd, "compare", proxy.Compare, payload, "comparison")
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "content summary")
	cmd.Flags().StringVar(&manifesto, "manifesto", "", "manifesto text; the stored one is used when empty")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func (c *cli) manifestoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifesto",
		Short: "Scan the store and generate its brand manifesto",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, "manifesto", proxy.GenerateManifesto, map[string]any{}, "manifesto")
		},
	}
}

func (c *cli) campaignCmd() *cobra.Command {
	campaign := &cobra.Command{
		Use:   "campaign",
		Short: "Draft and publish marketing campaigns",
	}

	var goal string
	var channels []string
	draft := &cobra.Command{
		Use:   "draft",
		Short: "Draft a campaign for the given goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, ch := range channels {
				channels[i] = strings.ToUpper(strings.TrimSpace(ch))
			}
			payload := map[string]any{"campaign_goal": goal, "channels": channels}
			return c.run(cmd, "campaign-draft", proxy.DraftCampaign, payload, "")
		},
	}
	draft.Flags().StringVar(&goal, "goal", "", "campaign goal")
	draft.Flags().StringSliceVar(&channels, "channels", []string{"EMAIL"}, "channels (EMAIL, INSTAGRAM, BLOG, YOUTUBE_SHORTS)")
	_ = draft.MarkFlagRequired("goal")

	var data string
	publish := &cobra.Command{
		Use:   "publish",
		Short: "Publish a drafted campaign as a marketing event",
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignData, err := readCampaignData(data)
			if err != nil {
				return err
			}
			payload := map[string]any{"campaign_data": campaignData}
			return c.run(cmd, "campaign-publish", proxy.PublishCampaign, payload, "")
		},
	}
	publish.Flags().StringVar(&data, "data", "", "campaign JSON, or @path to read it from a file")
	_ = publish.MarkFlagRequired("data")

	campaign.AddCommand(draft, publish)
	return campaign
}

// readCampaignData accepts inline JSON or @file. A draft result
// ({"campaign_data": {...}}) is unwrapped so it can be piped straight back.
func readCampaignData(value string) (json.RawMessage, error) {
	raw := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read campaign data: %w", err)
		}
		raw = b
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, errors.New("campaign data must be a JSON object")
	}
	if inner, ok := obj["campaign_data"]; ok && len(obj) == 1 {
		return inner, nil
	}
	return json.RawMessage(raw), nil
}

// run mounts surface, triggers it once and renders the settled state.
// markdownKey names the payload field rendered as markdown; when empty the
// payload is printed as JSON.
func (c *cli) run(cmd *cobra.Command, surface string, name proxy.CommandName, payload any, markdownKey string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	registry := operation.NewRegistry(
		client.New(c.panelURL, c.token),
		operation.WithRetry(operation.RetryPolicy{MaxAttempts: c.attempts, Backoff: c.cfg.RetryBackoff}),
		operation.WithLogger(c.logger),
	)
	defer registry.Close()

	ctrl, err := registry.Mount(surface, name)
	if err != nil {
		return err
	}
	token, err := ctrl.Trigger(cmd.Context(), raw)
	if err != nil {
		return err
	}
	c.logger.Debug("operation triggered", zap.String("surface", surface), zap.Uint64("token", token))

	state, err := ctrl.Wait(cmd.Context())
	if err != nil {
		return err
	}
	if state.Phase == operation.Failed {
		return fmt.Errorf("%s failed: %s", surface, state.ErrorMessage)
	}
	return c.render(cmd.OutOrStdout(), state.Payload, markdownKey)
}
