package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/openrecon/scanview/pkg/api"
	"github.com/openrecon/scanview/pkg/config"
	"github.com/openrecon/scanview/pkg/merge"
	"github.com/openrecon/scanview/pkg/models"
	"github.com/openrecon/scanview/pkg/nmap"
	"github.com/openrecon/scanview/pkg/query"
	"github.com/openrecon/scanview/pkg/vendor"
)

const (
	appName    = "scanview"
	appVersion = "1.0.2"
)

var log = logrus.New()

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "Normalize and query nmap scan output (XML, greppable, normal)",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SCANVIEW_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "vendor-db",
				Usage: "MAC vendor CSV `FILE` (prefix,vendor per line)",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", c.String("log-level"), err)
			}
			log.SetLevel(level)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
		Commands: []*cli.Command{
			parseCommand(),
			queryCommand(),
			fieldsCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig layers the config file (when given) over the defaults.
func loadConfig(c *cli.Context) config.Config {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadConfigFromFile(path)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", path, err)
		}
		cfg = loaded
	}
	if path := c.String("vendor-db"); path != "" {
		cfg.VendorDBPath = path
	}
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return cfg
}

// newParser builds the parser, wiring in the MAC vendor lookup.
func newParser(cfg config.Config) *nmap.Parser {
	db := vendor.New()
	if cfg.VendorDBPath != "" {
		if err := db.LoadFile(cfg.VendorDBPath); err != nil {
			log.Warnf("Could not load vendor database %s: %v", cfg.VendorDBPath, err)
		} else {
			log.Debugf("Vendor database loaded, %d prefixes", db.Count())
		}
	}
	return nmap.NewParser(nmap.WithVendorLookup(db.Lookup))
}

// loadScans parses every given file and folds them into one scan.
func loadScans(parser *nmap.Parser, cfg config.Config, paths []string) (*models.Scan, error) {
	var result *models.Scan
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > cfg.MaxInputBytes {
			return nil, fmt.Errorf("%s exceeds the input size limit (%d bytes)", path, cfg.MaxInputBytes)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		scan, err := parser.Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		log.Debugf("Parsed %s: %d hosts", path, scan.TotalHosts)
		if result == nil {
			result = scan
		} else {
			result = merge.Scans(result, scan)
		}
	}
	return result, nil
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse scan output files; multiple files are merged in order",
		ArgsUsage: "FILE [FILE...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Emit the canonical scan as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one input file is required", 1)
			}
			cfg := loadConfig(c)
			scan, err := loadScans(newParser(cfg), cfg, c.Args().Slice())
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(scan)
			}
			printScanSummary(scan)
			return nil
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Filter, search and sort hosts of parsed scan output",
		ArgsUsage: "FILE [FILE...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Filter rule `FIELD:OP:VALUE` (repeatable)",
			},
			&cli.StringFlag{
				Name:  "logic",
				Value: "and",
				Usage: "Combine filter rules with \"and\" or \"or\"",
			},
			&cli.StringFlag{
				Name:    "search",
				Aliases: []string{"s"},
				Usage:   "Free-text search across host fields",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort keys, e.g. \"ip:asc,open_ports:desc\"",
			},
			&cli.BoolFlag{Name: "json", Usage: "Emit matching hosts as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one input file is required", 1)
			}
			cfg := loadConfig(c)
			scan, err := loadScans(newParser(cfg), cfg, c.Args().Slice())
			if err != nil {
				return err
			}

			group, err := buildRuleGroup(c.String("logic"), c.StringSlice("filter"))
			if err != nil {
				return err
			}

			hosts := query.ApplyFilters(scan.Hosts, group)
			hosts = query.ApplySearch(hosts, c.String("search"))
			hosts = query.ApplySort(hosts, api.ParseSortExpr(c.String("sort")))

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(hosts)
			}
			printHostTable(hosts)
			color.Cyan("\n%d of %d hosts matched\n", len(hosts), len(scan.Hosts))
			return nil
		},
	}
}

func fieldsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fields",
		Usage: "List filterable fields and the operators valid for each",
		Action: func(c *cli.Context) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tKIND\tOPERATORS")
			for _, f := range query.Fields() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Kind, strings.Join(query.OperatorsFor(f.Kind), ", "))
			}
			return w.Flush()
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the read-only query API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := loadConfig(c)
			if port := c.String("port"); port != "" {
				cfg.APIPort = port
			}
			server := api.NewServer(cfg, newParser(cfg), log)
			return server.Run()
		},
	}
}

// buildRuleGroup turns repeated FIELD:OP:VALUE expressions into a rule group.
func buildRuleGroup(logic string, exprs []string) (query.RuleGroup, error) {
	group := query.RuleGroup{Logic: query.Logic(strings.ToLower(logic))}
	if group.Logic != query.LogicOr {
		group.Logic = query.LogicAnd
	}
	for _, expr := range exprs {
		parts := strings.SplitN(expr, ":", 3)
		if len(parts) < 2 {
			return group, fmt.Errorf("invalid filter %q: expected FIELD:OP:VALUE", expr)
		}
		rule := query.Rule{Field: parts[0], Operator: parts[1], Enabled: true}
		if len(parts) == 3 {
			rule.Value = parts[2]
		}
		group.Rules = append(group.Rules, rule)
	}
	return group, nil
}

func printScanSummary(scan *models.Scan) {
	color.Cyan("=== Scan summary ===")
	fmt.Printf("Scanner:  %s %s\n", scan.Scanner, scan.Version)
	if scan.Args != "" {
		fmt.Printf("Command:  %s\n", scan.Args)
	}
	fmt.Printf("Hosts:    %d total, %d up, %d down, %d other\n",
		scan.TotalHosts, scan.HostsUp, scan.HostsDown, scan.HostsOther)
	if scan.Duration > 0 {
		fmt.Printf("Duration: %.2fs\n", scan.Duration)
	}

	if len(scan.UniquePorts) > 0 {
		color.Cyan("\n=== Unique ports ===")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PORT\tSTATE\tSERVICE\tHOSTS")
		for _, ps := range scan.UniquePorts {
			fmt.Fprintf(w, "%d/%s\t%s\t%s\t%d\n", ps.Port, ps.Protocol, ps.State, ps.Service, ps.Count)
		}
		w.Flush()
	}

	if len(scan.UniqueServices) > 0 {
		color.Cyan("\n=== Unique services ===")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tPRODUCT\tVERSION\tHOSTS")
		for _, ss := range scan.UniqueServices {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", ss.Name, ss.Product, ss.Version, len(ss.Hosts))
		}
		w.Flush()
	}
}

func printHostTable(hosts []*models.Host) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IP\tHOSTNAME\tSTATUS\tOPEN\tOS")
	for _, h := range hosts {
		addr := h.Addr()
		if addr == "" {
			addr = h.MAC
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", addr, h.Hostname, h.Status.State, h.OpenPorts, h.OSName)
	}
	w.Flush()
}
