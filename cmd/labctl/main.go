package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"labdevices/pkg/device"
	"labdevices/pkg/monitor"
	"labdevices/pkg/registry"
	"labdevices/pkg/server"
	"labdevices/pkg/store"
	"labdevices/templates"

	_ "labdevices/pkg/drivers"
)

func main() {
	app := &cli.App{
		Name:  "labctl",
		Usage: "Control and check the laboratory instruments",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path of the device parameter store",
				Value:   "labdevices.db",
				EnvVars: []string{"LABDEVICES_DB"},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List every registered device",
				Action: runList,
			},
			{
				Name:      "describe",
				Usage:     "Print the call surface of a device",
				ArgsUsage: "<name>",
				Action:    runDescribe,
			},
			{
				Name:  "check",
				Usage: "Verify every driver/dummy pair against the capability contract",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "family",
						Aliases: []string{"f"},
						Usage:   "Check a single family or device",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Also print tolerated rejections and skipped members",
					},
				},
				Action: runCheck,
			},
			{
				Name:      "idn",
				Usage:     "Read a device identification",
				ArgsUsage: "<name>",
				Flags:     connFlags(),
				Action:    runIDN,
			},
			{
				Name:      "query",
				Usage:     "Send a raw command and print the response",
				ArgsUsage: "<name> <command>",
				Flags:     connFlags(),
				Action:    runQuery,
			},
			{
				Name:      "set",
				Usage:     "Save connection parameters for a device",
				ArgsUsage: "<name>",
				Flags:     connFlags(),
				Action:    runSet,
			},
			{
				Name:  "serve",
				Usage: "Serve the device API over HTTP, dummies for every model",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "Port to listen on",
						Value:   8090,
						EnvVars: []string{"LABDEVICES_PORT"},
					},
					&cli.IntFlag{
						Name:  "discovery-port",
						Usage: "UDP port answering LAN discovery",
						Value: 8091,
					},
				},
				Action: runServe,
			},
			{
				Name:  "monitor",
				Usage: "Poll devices and publish readings over MQTT",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Monitor configuration file",
						Value:   "monitor.yaml",
						EnvVars: []string{"LABDEVICES_MONITOR_CONFIG"},
					},
				},
				Action: runMonitor,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func connFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "Device address (host, serial port or resource)",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "TCP/UDP port, or GPIB address behind an adapter",
		},
		&cli.IntFlag{
			Name:  "controller",
			Usage: "Controller number on a shared bus",
		},
	}
}

func runList(c *cli.Context) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVENDOR\tMODEL")
	for _, def := range registry.Match("") {
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, def.Vendor, def.Model)
	}
	return w.Flush()
}

func runDescribe(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("usage: labctl describe <name>")
	}

	def, ok := registry.Get(strings.TrimSuffix(name, registry.DummySuffix))
	if !ok {
		return fmt.Errorf("unknown device %s", name)
	}

	fmt.Printf("%s (%s %s)\n", def.Name, def.Vendor, def.Model)
	for _, m := range def.Descriptor().Members {
		fmt.Printf("  %s\n", m.Signature())
	}
	return nil
}

// runCheck exercises every matching dummy end to end and reports all
// found violations, not just the first.
func runCheck(c *cli.Context) error {
	defs := registry.Match(c.String("family"))
	if len(defs) == 0 {
		return fmt.Errorf("no registered device matches %q", c.String("family"))
	}

	violations := 0
	for _, def := range defs {
		dummy, err := def.Dummy()
		if err != nil {
			violations++
			fmt.Printf("%s: FAIL\n  constructing dummy: %v\n", def.Name, err)
			continue
		}

		result := device.VerifyInstance(dummy)
		if len(result.Violations) == 0 {
			fmt.Printf("%s: ok%s\n", def.Name, checkNotes(result))
		} else {
			violations += len(result.Violations)
			fmt.Printf("%s: FAIL\n", def.Name)
			for _, v := range result.Violations {
				fmt.Printf("  %s\n", v)
			}
		}

		if c.Bool("verbose") {
			for _, name := range sortedKeys(result.Tolerated) {
				fmt.Printf("  tolerated %s: %s\n", name, result.Tolerated[name])
			}
			for _, name := range result.Skipped {
				fmt.Printf("  skipped %s: no placeholder for its parameters\n", name)
			}
		}
	}

	if violations > 0 {
		return cli.Exit(fmt.Sprintf("%d contract violations", violations), 1)
	}
	fmt.Printf("checked %d devices, no violations\n", len(defs))
	return nil
}

func checkNotes(r device.ProbeResult) string {
	var notes []string
	if n := len(r.Tolerated); n > 0 {
		notes = append(notes, fmt.Sprintf("%d tolerated", n))
	}
	if n := len(r.Skipped); n > 0 {
		notes = append(notes, fmt.Sprintf("%d skipped", n))
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, ", ") + ")"
}

func runIDN(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("usage: labctl idn <name>")
	}

	dev, err := openDevice(c, name)
	if err != nil {
		return err
	}
	defer dev.Close()

	idn, err := dev.IDN()
	if err != nil {
		return err
	}
	fmt.Println(idn)
	return nil
}

func runQuery(c *cli.Context) error {
	name := c.Args().Get(0)
	cmd := c.Args().Get(1)
	if name == "" || cmd == "" {
		return fmt.Errorf("usage: labctl query <name> <command>")
	}

	dev, err := openDevice(c, name)
	if err != nil {
		return err
	}
	defer dev.Close()

	resp, err := dev.Query(cmd)
	if err != nil {
		return err
	}
	fmt.Println(resp)
	return nil
}

func runSet(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("usage: labctl set <name> --address <addr>")
	}

	base := strings.TrimSuffix(name, registry.DummySuffix)
	if _, ok := registry.Get(base); !ok {
		return fmt.Errorf("unknown device %s", name)
	}

	db, err := bolt.Open(c.String("db"), 0600, nil)
	if err != nil {
		return fmt.Errorf("opening parameter store: %v", err)
	}
	defer db.Close()

	st, err := store.NewStore(db)
	if err != nil {
		return err
	}

	p := registry.Params{
		Address:    c.String("address"),
		Port:       c.Int("port"),
		Controller: c.Int("controller"),
	}
	if err := st.SetParams(base, p); err != nil {
		return err
	}
	log.Infof("Saved %+v for %s", p, base)
	return nil
}

// openDevice builds and initializes a device, taking the connection
// parameters from the flags or, when none are given, from the store.
func openDevice(c *cli.Context, name string) (device.Device, error) {
	p, err := connParams(c, name)
	if err != nil {
		return nil, err
	}

	dev, err := registry.Open(name, p)
	if err != nil {
		return nil, err
	}
	if err := dev.Initialize(); err != nil {
		return nil, err
	}
	return dev, nil
}

func connParams(c *cli.Context, name string) (registry.Params, error) {
	if c.IsSet("address") || c.IsSet("port") || c.IsSet("controller") {
		return registry.Params{
			Address:    c.String("address"),
			Port:       c.Int("port"),
			Controller: c.Int("controller"),
		}, nil
	}

	db, err := bolt.Open(c.String("db"), 0600, nil)
	if err != nil {
		return registry.Params{}, fmt.Errorf("opening parameter store: %v", err)
	}
	defer db.Close()

	st, err := store.NewStore(db)
	if err != nil {
		return registry.Params{}, err
	}
	return st.GetParams(strings.TrimSuffix(name, registry.DummySuffix))
}

func runServe(c *cli.Context) error {
	tmpl, err := templates.LoadTemplates()
	if err != nil {
		return fmt.Errorf("failed to load templates: %v", err)
	}

	// Dummies for every registered model: the full API surface with no
	// hardware attached.
	devices := make([]*server.ManagedDevice, 0)
	for _, def := range registry.Match("") {
		dev, err := server.NewManagedDevice(def.Name+registry.DummySuffix, def.Example)
		if err != nil {
			return err
		}
		devices = append(devices, dev)
	}

	srv := server.NewServer(devices, tmpl, log.StandardLogger())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Int("port")),
		Handler: srv.Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		log.Infof("Serving %d devices on %s", len(devices), httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", httpSrv.Addr, err)
		}
		wg.Done()
	}()

	dr, err := server.NewDiscoveryResponder("0.0.0.0", c.Int("discovery-port"), c.Int("port"),
		log.WithField("component", "discovery"))
	if err != nil {
		return fmt.Errorf("failed to start discovery responder: %v", err)
	}

	wg.Add(1)
	go func() {
		if err := dr.Run(ctx); err != nil {
			log.Errorf("Discovery responder failed: %v", err)
		}
		wg.Done()
		log.Debug("Discovery responder stopped")
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
	return nil
}

func runMonitor(c *cli.Context) error {
	cfg, err := monitor.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	pub, err := monitor.NewMQTTPublisher(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return monitor.New(cfg, pub, log.StandardLogger()).Run(ctx)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
