package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-analytics/internal/config"
	"github.com/capitalize-ai/conversation-analytics/internal/model"
	"github.com/capitalize-ai/conversation-analytics/internal/schema"
	"github.com/capitalize-ai/conversation-analytics/internal/service"
	"github.com/capitalize-ai/conversation-analytics/internal/taxonomy"
)

func newGenerateSchemaCmd(cfg *config.Config) *cobra.Command {
	var dataPath, output, baseSchema string

	cmd := &cobra.Command{
		Use:   "generate-schema",
		Short: "Discover the event taxonomy of a set of conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, "generate-schema")
			if err != nil {
				return err
			}
			defer a.close()
			a.serveOps()

			convs, err := a.conversations(ctx, dataPath)
			if err != nil {
				return err
			}
			var base *model.DataSchema
			if baseSchema != "" {
				if base, err = schema.NewStore(baseSchema).Load(); err != nil {
					return err
				}
			}
			backend, err := a.backend(ctx)
			if err != nil {
				return err
			}
			a.progress.MarkLoaded()

			svc := service.NewSchemaService(service.SchemaExecutors{
				AssistantNamer: a.executor(backend, cfg.AssistantNamerModel),
				JudgeCriteria:  a.executor(backend, cfg.JudgeCriteriaModel),
				EventSchema:    a.executor(backend, cfg.EventSchemaModel),
			}, service.SchemaConfig{
				Builder: taxonomy.BuilderConfig{
					BatchSize:       cfg.SchemaBatchSize,
					NumBatches:      cfg.SchemaNumBatches,
					PropertyWorkers: cfg.SchemaPropertyWorkers,
					Policy:          cfg.SchemaPolicy(),
				},
				Policy: cfg.SchemaPolicy(),
			}, a.progress, a.log)

			out, err := svc.Generate(ctx, convs, base)
			if err != nil {
				a.log.Error("schema generation failed", zap.Error(err))
				return err
			}

			store := schema.NewStore(output)
			if err := store.Save(out); err != nil {
				return err
			}
			a.log.Info("schema saved", zap.String("path", store.Path()), zap.Int("event_types", out.EventTypes.Len()))

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"ok":          true,
					"path":        store.Path(),
					"assistant":   out.Assistant,
					"event_types": out.EventTypes.Names(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d event types for %q to %s\n", out.EventTypes.Len(), out.Assistant.Name, store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data-path", "", "Conversations: local .csv or .json file, or s3://bucket/prefix")
	cmd.Flags().StringVar(&output, "output", "schema.yaml", "Path of the schema document to write")
	cmd.Flags().StringVar(&baseSchema, "base-schema", "", "Existing schema document to extend")
	cmd.Flags().StringVar(&cfg.AssistantNamerModel, "assistant-namer-model", cfg.AssistantNamerModel, "Model naming the assistant")
	cmd.Flags().StringVar(&cfg.JudgeCriteriaModel, "judge-criteria-model", cfg.JudgeCriteriaModel, "Model writing judge criteria")
	cmd.Flags().StringVar(&cfg.EventSchemaModel, "event-schema-model", cfg.EventSchemaModel, "Model discovering event types and properties")
	cmd.Flags().IntVar(&cfg.SchemaBatchSize, "batch-size", cfg.SchemaBatchSize, "Conversations per discovery batch")
	cmd.Flags().IntVar(&cfg.SchemaNumBatches, "num-batches", cfg.SchemaNumBatches, "Number of batches; conversations beyond batch-size x num-batches are not used")
	_ = cmd.MarkFlagRequired("data-path")
	return cmd
}
