package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/config"
	"github.com/capitalize-ai/conversation-analytics/internal/destination"
	"github.com/capitalize-ai/conversation-analytics/internal/handler"
	"github.com/capitalize-ai/conversation-analytics/internal/schema"
	"github.com/capitalize-ai/conversation-analytics/internal/service"
)

func newTagEventsCmd(cfg *config.Config) *cobra.Command {
	var (
		dataPath, schemaPath string
		detectBehaviors      bool
		judge                bool
		limit                int
	)

	cmd := &cobra.Command{
		Use:   "tag-events",
		Short: "Tag conversations against a schema and send the events to a destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, "tag-events")
			if err != nil {
				return err
			}
			defer a.close()

			ds, err := schema.NewStore(schemaPath).Load()
			if err != nil {
				return err
			}
			convs, err := a.conversations(ctx, dataPath)
			if err != nil {
				return err
			}
			if limit > 0 && len(convs) > limit {
				convs = convs[:limit]
			}
			backend, err := a.backend(ctx)
			if err != nil {
				return err
			}

			sink, err := destination.New(ctx, cfg.Destination, cfg.Sink(), a.log)
			if err != nil {
				return fmt.Errorf("failed to create destination: %w", err)
			}
			defer func() {
				if err := sink.Close(); err != nil {
					a.log.Warn("failed to close destination", zap.Error(err))
				}
			}()

			var checks []handler.ReadinessCheck
			if ns, ok := sink.(*destination.NATSSink); ok {
				checks = append(checks, handler.ReadinessCheck{Name: "nats", Ready: ns.Connected})
			}
			a.serveOps(checks...)
			a.progress.MarkLoaded()

			tcfg := service.TaggingConfig{
				EventWorkers:       cfg.EventWorkers,
				ExplanationWorkers: cfg.ExplanationWorkers,
				PropertyWorkers:    cfg.PropertyWorkers,
				UploadWorkers:      cfg.UploadWorkers,
				PropertyBatchSize:  cfg.PropertyBatchSize,
				DetectBehaviors:    detectBehaviors,
				Judge:              judge,
				Destination:        cfg.Destination,
				Policy:             cfg.QueryPolicy(),
			}
			svc := service.NewTaggingService(service.TaggingExecutors{
				Event:       a.executor(backend, cfg.EventModel),
				Explanation: a.executor(backend, cfg.ExplanationModel),
				Property:    a.executor(backend, cfg.PropertyModel),
				EventSchema: a.executor(backend, cfg.EventSchemaModel),
			}, sink, tcfg, a.progress, a.log)

			report, err := svc.Run(ctx, ds, convs)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tagged %d of %d conversations: %d events sent, %d failed\n",
				report.Tagged, report.Conversations, report.EventsSent, report.EventsFailed)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data-path", "", "Conversations: local .csv or .json file, or s3://bucket/prefix")
	cmd.Flags().StringVar(&schemaPath, "schema", "schema.yaml", "Schema document produced by generate-schema")
	cmd.Flags().StringVar(&cfg.EventModel, "event-model", cfg.EventModel, "Model assigning event types")
	cmd.Flags().StringVar(&cfg.ExplanationModel, "explanation-model", cfg.ExplanationModel, "Model explaining assignments")
	cmd.Flags().StringVar(&cfg.PropertyModel, "property-model", cfg.PropertyModel, "Model assigning property values, behaviors and judge scores")
	cmd.Flags().StringVar(&cfg.EventSchemaModel, "event-schema-model", cfg.EventSchemaModel, "Model clustering behavior patterns")
	cmd.Flags().StringVar(&cfg.Destination, "destination", cfg.Destination, "Destination: amplitude, posthog, nats or log")
	cmd.Flags().BoolVar(&detectBehaviors, "detect-behaviors", false, "Cluster behavior patterns per event type and tag events with them")
	cmd.Flags().BoolVar(&judge, "judge", false, "Score each conversation against the judge criteria")
	cmd.Flags().IntVar(&limit, "limit", 0, "Tag at most this many conversations (0 for all)")
	_ = cmd.MarkFlagRequired("data-path")
	return cmd
}
