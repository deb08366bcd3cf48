package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/app"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/config"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/db"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/rules"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/server"
	tbl "github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/table"
)

var rootCmd = &cobra.Command{
	Use:   "sft",
	Short: "Shopify fulfillment tool",
	Long: `sft simulates stock allocation for Shopify order exports.
It loads an orders table and a stock table, decides per order whether the
warehouse can ship it (multi-item orders claim stock first), annotates
lines through the configured rule set, and persists the run so orders can
be toggled by hand afterwards.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(toggleCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func simulateCmd() *cobra.Command {
	var ordersPath, stockPath, exportPath string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a fulfillment run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				ordersTable, err := tbl.ReadFile(ordersPath)
				if err != nil {
					return fmt.Errorf("read orders: %w", err)
				}
				stockTable, err := tbl.ReadFile(stockPath)
				if err != nil {
					return fmt.Errorf("read stock: %w", err)
				}
				lines, lineErrs := tbl.Orders(ordersTable, env.Config.ColumnMappings.Orders)
				for _, de := range lineErrs {
					fmt.Fprintln(os.Stderr, "orders:", de.Error())
				}
				if len(lines) == 0 {
					return fmt.Errorf("no usable order lines in %s", ordersPath)
				}
				stock, stockErrs := tbl.Stock(stockTable, env.Config.ColumnMappings.Stock)
				for _, de := range stockErrs {
					fmt.Fprintln(os.Stderr, "stock:", de.Error())
				}
				run, err := env.Engine.RunSimulation(ctx, lines, stock, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if exportPath != "" {
					if err := tbl.ExportRun(&run, exportPath); err != nil {
						return fmt.Errorf("export: %w", err)
					}
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				printRunSummary(run)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ordersPath, "orders", "", "orders file (csv or xlsx)")
	cmd.Flags().StringVar(&stockPath, "stock", "", "stock file (csv or xlsx)")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the annotated run to an xlsx file")
	_ = cmd.MarkFlagRequired("orders")
	_ = cmd.MarkFlagRequired("stock")
	return cmd
}

func toggleCmd() *cobra.Command {
	var fulfillable bool
	cmd := &cobra.Command{
		Use:   "toggle <run-id> <order-id>",
		Short: "Toggle an order's fulfillment status within a run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				run, err := env.Engine.Toggle(ctx, args[0], args[1], fulfillable, viper.GetBool("force"), viper.GetString("actor-id"))
				if err != nil {
					var ce domain.ConflictError
					if errors.As(err, &ce) {
						return fmt.Errorf("%w (re-run with --force to go negative)", err)
					}
					return err
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				printRunSummary(run)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fulfillable, "fulfillable", true, "target status")
	return cmd
}

func runsCmd() *cobra.Command {
	runs := &cobra.Command{Use: "runs", Short: "Inspect persisted runs"}
	runs.AddCommand(runsListCmd())
	runs.AddCommand(runsShowCmd())
	return runs
}

func runsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				items, err := env.Engine.Repo.ListRuns(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Created", "Orders", "Fulfillable", "Unfulfillable", "Value"})
				for _, it := range items {
					tw.AppendRow(table.Row{
						it.ID, it.CreatedAt,
						it.Stats.TotalOrders, it.Stats.FulfillableOrders, it.Stats.UnfulfillableOrders,
						it.Stats.FulfillableValue.String(),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func runsShowCmd() *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				run, err := env.Engine.Repo.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if exportPath != "" {
					if err := tbl.ExportRun(&run, exportPath); err != nil {
						return fmt.Errorf("export: %w", err)
					}
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				printRunSummary(run)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "write the run to an xlsx file")
	return cmd
}

func rulesCmd() *cobra.Command {
	r := &cobra.Command{Use: "rules", Short: "Inspect and validate annotation rules"}
	r.AddCommand(rulesListCmd())
	r.AddCommand(rulesValidateCmd())
	r.AddCommand(rulesOperatorsCmd())
	r.AddCommand(rulesFieldsCmd())
	return r
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if viper.GetBool("json") {
					return printJSON(env.Config.Rules)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Conditions", "Actions"})
				for _, r := range env.Config.Rules {
					tw.AppendRow(table.Row{r.Name, len(r.Conditions), len(r.Actions)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func rulesValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configured rule set, or one from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				ruleSet := env.Config.Rules
				if file != "" {
					data, err := os.ReadFile(file)
					if err != nil {
						return err
					}
					var doc struct {
						Rules []rules.Rule `yaml:"rules"`
					}
					if err := yaml.Unmarshal(data, &doc); err != nil {
						return fmt.Errorf("parse %s: %w", file, err)
					}
					ruleSet = doc.Rules
				}
				errs := rules.Validate(ruleSet, env.Config.Settings.RequireKnownFields)
				if len(errs) == 0 {
					fmt.Println("ok:", len(ruleSet), "rules")
					return nil
				}
				for _, ve := range errs {
					fmt.Fprintln(os.Stderr, ve.Error())
				}
				return fmt.Errorf("%d validation errors", len(errs))
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML file with a rules: list")
	return cmd
}

func rulesOperatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List condition operators",
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := rules.Operators()
			if viper.GetBool("json") {
				return printJSON(ops)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Key", "Label", "Kind", "Needs value"})
			for _, op := range ops {
				tw.AppendRow(table.Row{op.Key, op.Label, op.Kind.String(), op.NeedsValue})
			}
			tw.Render()
			return nil
		},
	}
}

func rulesFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List fields rule conditions can target",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := rules.Fields()
			if viper.GetBool("json") {
				return printJSON(fields)
			}
			for _, f := range fields {
				fmt.Println(f)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Manage workspace configuration"}
	c.AddCommand(configShowCmd())
	c.AddCommand(configInitCmd())
	c.AddCommand(configSetMappingCmd())
	return c
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if viper.GetBool("json") {
					return printJSON(env.Config)
				}
				data, err := yaml.Marshal(env.Config)
				if err != nil {
					return err
				}
				fmt.Print(string(data))
				return nil
			})
		},
	}
}

func configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !viper.GetBool("force") {
				return fmt.Errorf("%s exists, use --force to overwrite", path)
			}
			store := config.NewStore(path)
			if err := store.Save(config.Default()); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func configSetMappingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-mapping <orders|stock> <field> <header>",
		Short: "Point a canonical field at a source column header",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if err := env.Config.ColumnMappings.Set(args[0], args[1], args[2]); err != nil {
					return err
				}
				if err := env.Store.Save(env.Config); err != nil {
					return err
				}
				fmt.Printf("%s.%s -> %s\n", args[0], args[1], args[2])
				return nil
			})
		},
	}
}

func historyCmd() *cobra.Command {
	h := &cobra.Command{Use: "history", Short: "Fulfillment history across runs"}
	h.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded order+SKU outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				items, err := env.Engine.Repo.ListHistory(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Order", "SKU", "Fulfilled", "Run", "At"})
				for _, rec := range items {
					tw.AppendRow(table.Row{rec.OrderID, rec.SKU, rec.Fulfilled, rec.RunID, rec.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return h
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				events, err := env.Engine.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("SFT_JWT_SECRET")}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("SFT_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{
					Engine:   env.Engine,
					Store:    env.Store,
					BasePath: basePath,
					Auth:     authCfg,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving fulfillment API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func printRunSummary(run domain.Run) {
	fmt.Println("run:", run.ID)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Order", "Lines", "Multi-item", "Fulfillable"})
	for _, o := range run.Orders {
		tw.AppendRow(table.Row{o.ID, len(o.Lines), o.MultiItem, o.Fulfillable})
	}
	tw.Render()
	s := run.Stats
	fmt.Printf("orders: %d total, %d fulfillable (%s), %d unfulfillable (%s)\n",
		s.TotalOrders, s.FulfillableOrders, s.FulfillableValue.String(),
		s.UnfulfillableOrders, s.UnfulfillableValue.String())
	for _, ms := range s.MissingStock {
		fmt.Printf("missing: %s short %d (requested %d, available %d)\n", ms.SKU, ms.Short, ms.Requested, ms.Available)
	}
	if len(run.DataErrors) > 0 {
		fmt.Println("data errors:", len(run.DataErrors))
	}
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
