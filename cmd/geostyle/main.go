package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geostyle/internal/classify"
	"github.com/joeblew999/geostyle/internal/logger"
	"github.com/joeblew999/geostyle/internal/metrics"
	"github.com/joeblew999/geostyle/internal/server"
)

// Set with -ldflags at build time.
var (
	version   = "dev"
	revision  = ""
	buildDate = ""
)

// Options defines all CLI flags and env vars for the geostyle server.
// Flags: --host, --port, --data-dir, --settings, --log-level, --log-console, --no-db
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_SETTINGS, ...
type Options struct {
	Host       string `doc:"Host to bind to" default:"0.0.0.0"`
	Port       int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir    string `doc:"Directory for source files and the DuckDB database" default:".data"`
	Settings   string `doc:"Visual settings file (YAML, TOML or JSON)"`
	LogLevel   string `doc:"Log level: trace, debug, info, warn, error" default:"info"`
	LogConsole bool   `doc:"Human-readable console logs"`
	NoDB       bool   `doc:"Run without DuckDB (GeoJSON sources only)"`
}

func newServer(opts *Options) (*server.Server, error) {
	log := logger.Build(logger.Config{Level: opts.LogLevel, Console: opts.LogConsole, Component: "geostyle"}, os.Stderr)
	return server.New(server.Config{
		Host:         opts.Host,
		Port:         strconv.Itoa(opts.Port),
		DataDir:      opts.DataDir,
		SettingsFile: opts.Settings,
		DisableDB:    opts.NoDB,
		Version:      version,
		Log:          log,
		Metrics:      metrics.Init(metrics.Config{Build: metrics.BuildInfo{Version: version, Revision: revision, BuildDate: buildDate}}),
	})
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			srv, err := newServer(opts)
			if err != nil {
				fail("Error starting server: %v", err)
			}
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("geostyle API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := srv.Run(ctx, addr); err != nil {
				fail("Server error: %v", err)
			}
		})
		hooks.OnStop(cancel)
	})

	cli.Root().Use = "geostyle"
	cli.Root().Short = "Data-driven map layer styling service"
	cli.Root().Version = version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.NoDB = true
			opts.LogLevel = "off"
			srv, err := newServer(opts)
			if err != nil {
				fail("Error: %v", err)
			}
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			var output []byte
			if useYAML {
				output, err = yaml.Marshal(srv.OpenAPI())
			} else {
				output, err = json.MarshalIndent(srv.OpenAPI(), "", "  ")
			}
			if err != nil {
				fail("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// style subcommand: print the generated paint properties for a GeoJSON file
	styleCmd := &cobra.Command{
		Use:   "style <file.geojson>",
		Short: "Print the circle paint expressions and legend for a GeoJSON file",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			color, _ := cmd.Flags().GetStringSlice("color")
			size, _ := cmd.Flags().GetStringSlice("size")
			out, err := styleFile(args[0], opts.Settings, color, size)
			if err != nil {
				fail("Error: %v", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				fail("Error: %v", err)
			}
		}),
	}
	styleCmd.Flags().StringSlice("color", nil, "Properties bound to color")
	styleCmd.Flags().StringSlice("size", nil, "Properties bound to size")
	cli.Root().AddCommand(styleCmd)

	// breaks subcommand: classify numbers
	breaksCmd := &cobra.Command{
		Use:   "breaks <value>...",
		Short: "Print class breaks for the given numbers",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			name, _ := cmd.Flags().GetString("method")
			classes, _ := cmd.Flags().GetInt("classes")
			method, err := classify.ParseMethod(name)
			if err != nil {
				fail("Error: %v", err)
			}
			breaks, err := breaksFor(args, method, classes)
			if err != nil {
				fail("Error: %v", err)
			}
			out, _ := json.Marshal(breaks)
			fmt.Println(string(out))
		},
	}
	breaksCmd.Flags().StringP("method", "m", "quantile", "Classification: quantile, equidistant, logarithmic, naturalbreaks")
	breaksCmd.Flags().IntP("classes", "c", 0, "Number of classes; 0 derives it from the values")
	cli.Root().AddCommand(breaksCmd)

	cli.Run()
}
