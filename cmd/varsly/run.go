package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ToffenYT/varsly/pkg/models"
)

const dryRunSubscriber = "dry-run"

func (c *cli) ingestCmd() *cobra.Command {
	var (
		dry      bool
		keywords []string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass and print its summary",
		Long: `Fetch notices from the first source that yields data, match them against
every enabled subscriber's keywords and record new alerts.

With --dry the run uses an in-memory store seeded with one subscriber
holding the --keyword values, so nothing is written anywhere.

Examples:
  varsly ingest
  varsly ingest --dry --keyword asfalt --keyword brøyting`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg, appOptions{memory: dry})
			if err != nil {
				return err
			}
			defer a.close()

			if dry {
				if err := seedDryRun(ctx, a, keywords); err != nil {
					return err
				}
			}

			sum, err := a.pipeline.Run(ctx)
			if perr := printJSON(cmd.OutOrStdout(), sum); perr != nil {
				return perr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dry, "dry", false, "use an in-memory store")
	cmd.Flags().StringSliceVarP(&keywords, "keyword", "k", []string{"asfalt"}, "keywords of the dry-run subscriber")
	return cmd
}

func seedDryRun(ctx context.Context, a *app, keywords []string) error {
	if err := a.store.UpsertPreference(ctx, &models.SubscriberPreference{
		SubscriberID:         dryRunSubscriber,
		NotificationsEnabled: true,
		DeliveryMode:         models.DeliveryDailyDigest,
	}); err != nil {
		return fmt.Errorf("seed preference: %w", err)
	}
	for _, kw := range keywords {
		if err := a.store.InsertKeyword(ctx, &models.Keyword{OwnerID: dryRunSubscriber, Text: kw}); err != nil {
			return fmt.Errorf("seed keyword: %w", err)
		}
	}
	return nil
}

func (c *cli) digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the daily digest to every daily_digest subscriber",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			sum, err := a.router.Digest(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}
}
