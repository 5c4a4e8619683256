package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"restobject/internal/app"
	"restobject/internal/auth"
	"restobject/internal/config"
	"restobject/internal/dai"
	"restobject/internal/db"
	"restobject/internal/repo"
	"restobject/internal/rest"
	"restobject/internal/server"
	"restobject/internal/transport"
)

var rootCmd = &cobra.Command{
	Use:   "restobj",
	Short: "RESTObject CLI",
	Long: `restobj addresses a REST API as a tree of routes and serves a demo customers API.
- Routes: every path segment is a pooled route identity; navigating never sends a request.
- Commands: create (PUT), read (GET), update (POST) and delete (DELETE) act on a route.
- Pipelining: commands issued on a result that is still in flight are queued and replayed in order.
- Workspace: the .restobject directory holds the demo database; restobject.yml holds client, server and auth settings.`,
	SilenceUsage: true,
}

func main() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	_ = flag.CommandLine.Parse(nil)
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	glog.Flush()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RESTOBJECT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("base-url", "", "API base url (overrides config)")
	rootCmd.PersistentFlags().String("jwt-secret", "", "HS256 secret (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("base-url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("jwt-secret", rootCmd.PersistentFlags().Lookup("jwt-secret"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(callCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
}

// loadConfig reads restobject.yml when present and applies flag and env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if v := viper.GetString("base-url"); v != "" {
		cfg.Client.BaseURL = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	return cfg, cfg.Validate()
}

func serveCmd() *cobra.Command {
	var addr, basePath, memory string
	var seed int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo customers API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			if cmd.Flags().Changed("seed") {
				cfg.Server.Seed = seed
			}
			conn, r, err := app.Open(cmd.Context(), db.Config{Workspace: viper.GetString("workspace"), Memory: memory}, cfg.Server.Seed)
			if err != nil {
				return err
			}
			defer conn.Close()
			handler, err := server.New(server.Config{
				Repo:     r,
				BasePath: cfg.Server.BasePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			mode := "without auth"
			if cfg.Auth.JWTSecret != "" {
				mode = "with bearer auth"
			}
			fmt.Printf("Serving RESTObject demo API on http://%s%s %s (OpenAPI at %s/openapi.json)\n", cfg.Server.Addr, cfg.Server.BasePath, mode, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	cmd.Flags().IntVar(&seed, "seed", 0, "customers to seed into an empty store")
	cmd.Flags().StringVar(&memory, "memory", "", "serve from a named in-memory database")
	return cmd
}

func callCmd() *cobra.Command {
	var body string
	var params []string
	cmd := &cobra.Command{
		Use:   "call <path> <command>",
		Short: "Run a command against a route",
		Long: `Path is relative to the configured root, e.g. portal/users/customers.
Command is one of create, read, update, delete or route. Body is JSON.
Several commands may be chained with commas; each runs on the previous result
and is queued until that result is known.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var value any
			if body != "" {
				if err := json.Unmarshal([]byte(body), &value); err != nil {
					return fmt.Errorf("invalid --body: %w", err)
				}
			}
			query, err := parseParams(params)
			if err != nil {
				return err
			}
			client, err := newRESTClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()
			root, err := client.Root(cfg.Client.Root)
			if err != nil {
				return err
			}
			ep := root.Path(splitPath(args[0])...)
			for _, command := range strings.Split(args[1], ",") {
				switch strings.TrimSpace(command) {
				case rest.CommandCreate:
					ep = ep.Create(value)
				case rest.CommandRead:
					ep = ep.Read(query)
				case rest.CommandUpdate:
					ep = ep.Update(value)
				case rest.CommandDelete:
					ep = ep.Delete()
				case rest.CommandRoute:
					ep = ep.PreventDefault()
				default:
					return fmt.Errorf("unknown command %q", command)
				}
			}
			res, err := ep.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if ref, ok := res.(*dai.Reference); ok {
				if u, ok := client.URL(ref); ok {
					res = map[string]any{"route": u}
				}
			}
			return printResult(res)
		},
	}
	cmd.Flags().StringVar(&body, "body", "", "JSON request body")
	cmd.Flags().StringArrayVar(&params, "param", nil, "query parameter key=value (repeatable)")
	return cmd
}

func newRESTClient(ctx context.Context, cfg *config.Config) (*rest.Client, error) {
	tr := transport.New(cfg.Client.BaseURL)
	if cfg.Client.Timeout > 0 {
		tr.Timeout = cfg.Client.Timeout
	}
	if cfg.Auth.JWTSecret != "" {
		tr.Tokens = &auth.Minter{Secret: cfg.Auth.JWTSecret, Subject: cfg.Auth.Subject, TTL: cfg.Auth.TokenTTL}
	}
	return rest.New(tr,
		rest.WithContext(ctx),
		rest.WithTimeout(cfg.Client.Timeout),
		rest.WithCacheSize(cfg.Client.CacheSize),
	)
}

func tokenCmd() *cobra.Command {
	var subject string
	var roles []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the demo API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if subject == "" {
				subject = cfg.Auth.Subject
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := auth.Mint(cfg.Auth.JWTSecret, subject, roles, ttl, time.Now())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"token": token, "subject": subject})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (defaults to config auth.subject)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role claim (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to config auth.token_ttl)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage restobject.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default restobject.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			baseURL := viper.GetString("base-url")
			if baseURL == "" {
				baseURL = config.DefaultBaseURL
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(baseURL)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret != "" {
				cfg.Auth.JWTSecret = "********"
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate restobject.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the demo API audit log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, 0, evtType, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Request"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityID, e.ActorID, e.RequestID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, r, err := app.Open(ctx, db.Config{Workspace: viper.GetString("workspace")}, 0)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, r)
}

func splitPath(p string) []string {
	var keys []string
	for _, k := range strings.Split(p, "/") {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func parseParams(in []string) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := map[string]any{}
	for _, kv := range in {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		switch prev := out[k].(type) {
		case nil:
			out[k] = v
		case string:
			out[k] = []any{prev, v}
		case []any:
			out[k] = append(prev, v)
		}
	}
	return out, nil
}

// printResult renders lists of records and single records as tables.
func printResult(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	switch res := v.(type) {
	case []any:
		var cols []string
		seen := map[string]bool{}
		for _, item := range res {
			rec, ok := item.(map[string]any)
			if !ok {
				return printJSONOrTable(v)
			}
			for k := range rec {
				if !seen[k] {
					seen[k] = true
					cols = append(cols, k)
				}
			}
		}
		sortColumns(cols)
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		header := table.Row{}
		for _, c := range cols {
			header = append(header, c)
		}
		tw.AppendHeader(header)
		for _, item := range res {
			rec := item.(map[string]any)
			row := table.Row{}
			for _, c := range cols {
				row = append(row, cell(rec[c]))
			}
			tw.AppendRow(row)
		}
		tw.Render()
		return nil
	case map[string]any:
		keys := make([]string, 0, len(res))
		for k := range res {
			keys = append(keys, k)
		}
		sortColumns(keys)
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Field", "Value"})
		for _, k := range keys {
			tw.AppendRow(table.Row{k, cell(res[k])})
		}
		tw.Render()
		return nil
	}
	return printJSONOrTable(v)
}

// sortColumns orders keys alphabetically with id first.
func sortColumns(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "id" || keys[j] == "id" {
			return keys[i] == "id" && keys[j] != "id"
		}
		return keys[i] < keys[j]
	})
}

func cell(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, _ := json.Marshal(v)
		return string(b)
	case nil:
		return ""
	}
	return v
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
