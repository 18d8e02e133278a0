package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gosuri/uitable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/abdhe/openrouter-go/pkg/cache"
	"github.com/abdhe/openrouter-go/pkg/config"
	"github.com/abdhe/openrouter-go/pkg/gateway"
	"github.com/abdhe/openrouter-go/pkg/openrouter"
	"github.com/abdhe/openrouter-go/pkg/schema"
)

// ---------------------------------------------------------------------------
// models / credits
// ---------------------------------------------------------------------------

func newModelsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available models with their pricing",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			resp, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printModels(cmd.OutOrStdout(), resp.Data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	return cmd
}

func printModels(w io.Writer, models []openrouter.Model) {
	table := uitable.New()
	table.MaxColWidth = 48
	table.AddRow("ID", "CONTEXT", "PROMPT/1M", "COMPLETION/1M")
	for _, m := range models {
		table.AddRow(
			m.ID,
			m.ContextLength,
			"$"+m.Pricing.Prompt.Shift(6).StringFixed(2),
			"$"+m.Pricing.Completion.Shift(6).StringFixed(2),
		)
	}
	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "%d models, prices in USD per million tokens\n", len(models))
}

func newCreditsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credits",
		Short: "Show the account credit balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			resp, err := client.Credits(cmd.Context())
			if err != nil {
				return err
			}
			table := uitable.New()
			table.RightAlign(1)
			table.AddRow("total credits:", "$"+resp.Data.TotalCredits.StringFixed(4))
			table.AddRow("total usage:", "$"+resp.Data.TotalUsage.StringFixed(4))
			table.AddRow("outstanding:", "$"+resp.Data.Outstanding().StringFixed(4))
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// chat / stream
// ---------------------------------------------------------------------------

type chatFlags struct {
	model       string
	system      string
	temperature float64
	maxTokens   int
}

func (f *chatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "openai/gpt-4o-mini", "model id")
	cmd.Flags().StringVarP(&f.system, "system", "s", "", "system prompt")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", -1, "sampling temperature (unset when negative)")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "completion token limit (unset when 0)")
}

func (f *chatFlags) request(prompt string) openrouter.ChatCompletionRequest {
	req := openrouter.ChatCompletionRequest{Model: f.model}
	if f.system != "" {
		req.Messages = append(req.Messages, openrouter.SystemMessage(f.system))
	}
	req.Messages = append(req.Messages, openrouter.UserMessage(prompt))
	if f.temperature >= 0 {
		req.Temperature = openrouter.Float(f.temperature)
	}
	if f.maxTokens > 0 {
		req.MaxTokens = openrouter.Int(f.maxTokens)
	}
	return req
}

func newChatCmd() *cobra.Command {
	var flags chatFlags
	var schemaPath, schemaName string
	cmd := &cobra.Command{
		Use:   "chat PROMPT",
		Short: "Send a single chat completion",
		Long: "Send a single chat completion. With --schema the reply is constrained to the\n" +
			"JSON schema in the given file and printed as decoded JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			req := flags.request(args[0])

			if schemaPath != "" {
				data, err := os.ReadFile(schemaPath)
				if err != nil {
					return err
				}
				root, err := schema.Parse(data)
				if err != nil {
					return err
				}
				var out any
				if err := client.StructuredCompletionInto(cmd.Context(), req, schemaName, root, &out); err != nil {
					var decodeErr *openrouter.DecodingError
					if errors.As(err, &decodeErr) {
						log.Printf("[chat] raw content: %s", decodeErr.Data)
					}
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			resp, err := client.ChatCompletion(cmd.Context(), req)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return openrouter.ErrMissingContent
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Choices[0].Message.Content)
			log.Printf("[chat] %s via %s: %d prompt + %d completion tokens",
				resp.Model, resp.Provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&schemaPath, "schema", "", "path to a JSON schema file for a structured reply")
	cmd.Flags().StringVar(&schemaName, "schema-name", "response", "schema name sent with --schema")
	return cmd
}

func newStreamCmd() *cobra.Command {
	var flags chatFlags
	cmd := &cobra.Command{
		Use:   "stream PROMPT",
		Short: "Stream a chat completion to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			events, err := client.StreamChatCompletion(cmd.Context(), flags.request(args[0]))
			if err != nil {
				return err
			}

			// Ctrl-C ends the stream and keeps what was printed so far.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				client.StopStreaming()
			}()

			out := cmd.OutOrStdout()
			var usage *openrouter.Usage
			for ev := range events {
				if ev.Err != nil {
					return ev.Err
				}
				fmt.Fprint(out, ev.Chunk.Content())
				if ev.Chunk.Usage != nil {
					usage = ev.Chunk.Usage
				}
			}
			fmt.Fprintln(out)
			if usage != nil {
				log.Printf("[stream] %d prompt + %d completion tokens", usage.PromptTokens, usage.CompletionTokens)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC gateway with a Prometheus metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg config.Config) error {
	log.Println("Starting OpenRouter gateway...")

	// -------------------------------------------------------------------------
	// Model catalog cache
	// -------------------------------------------------------------------------
	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		redisCache = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CatalogTTL)

		// Verify Redis connection
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("WARNING: Redis connection failed: %v (shared catalog cache disabled)", err)
			redisCache.Close()
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Printf("Shared catalog cache enabled (TTL=%s)", cfg.CatalogTTL)
		}
		cancel()
	} else {
		log.Println("WARNING: REDIS_ADDR not set, catalog cached in process only")
	}

	client := openrouter.New(cfg.APIKey, cfg.ClientOptions()...)
	catalog, err := cache.NewCatalog(client, redisCache, cfg.CatalogLRUSize, cfg.CatalogTTL)
	if err != nil {
		return err
	}

	// -------------------------------------------------------------------------
	// Start gRPC server
	// -------------------------------------------------------------------------
	handler := gateway.NewHandler(gateway.Config{
		APIKey:        cfg.APIKey,
		ClientOptions: cfg.ClientOptions(),
		Catalog:       catalog,
	})
	grpcServer := gateway.NewServer(handler)

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on gRPC port %s: %w", cfg.GRPCPort, err)
	}

	go func() {
		log.Printf("gRPC server listening on :%s", cfg.GRPCPort)
		if err := grpcServer.Serve(grpcLis); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Start HTTP metrics server
	// -------------------------------------------------------------------------
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Metrics server listening on :%s/metrics", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server error: %v", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Graceful shutdown
	// -------------------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	log.Println("Metrics server stopped")

	log.Println("OpenRouter gateway shut down successfully")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
