// core-net shares one keyboard and mouse across machines on a LAN. Each node
// runs the same binary: a server node listens for peers, a client node dials
// one, and the routing core decides at any moment which screen owns the
// physical input.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/eladdad/core-net/config"
	"github.com/eladdad/core-net/discovery"
	"github.com/eladdad/core-net/input"
	"github.com/eladdad/core-net/network"
	"github.com/eladdad/core-net/observability"
	"github.com/eladdad/core-net/routing"
	"github.com/eladdad/core-net/screen"
	"github.com/eladdad/core-net/storage"
)

const usage = `core-net - software KVM for machines on a LAN

Usage:
  core-net server                      listen for peers and route input
  core-net client <peer> [--address]   connect to a peer by host name
  core-net discover [--timeout]        scan the LAN for running nodes
  core-net info                        print host identity and paths
  core-net config --generate           print an annotated sample config
  core-net config --show               print the active configuration

The server and client commands accept --verbose for debug logging.
Configuration lives in the per-user data directory (override with
CORENET_DATA_DIR).
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	switch args[0] {
	case "server":
		return runServer(args[1:])
	case "client":
		return runClient(args[1:])
	case "discover":
		return runDiscover(args[1:])
	case "info":
		return runInfo(os.Stdout, args[1:])
	case "config":
		return runConfig(args[1:])
	case "help", "--help", "-h":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runServer(args []string) error {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	verbose := flags.Bool("verbose", false, "enable debug logging")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 0 {
		return fmt.Errorf("server takes no arguments")
	}
	return runNode(*verbose, true, "", "")
}

type clientOptions struct {
	peer    string
	address string
	verbose bool
}

func parseClientArgs(args []string) (clientOptions, error) {
	flags := pflag.NewFlagSet("client", pflag.ContinueOnError)
	var opts clientOptions
	flags.StringVar(&opts.address, "address", "", "peer address host:port (otherwise resolved via mDNS)")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	if err := flags.Parse(args); err != nil {
		return clientOptions{}, err
	}
	if flags.NArg() != 1 {
		return clientOptions{}, fmt.Errorf("client requires exactly one peer host name")
	}
	opts.peer = flags.Arg(0)
	return opts, nil
}

func runClient(args []string) error {
	opts, err := parseClientArgs(args)
	if err != nil {
		return err
	}
	return runNode(opts.verbose, false, opts.peer, opts.address)
}

// runNode wires the full stack: config, storage, discovery, sessions, and
// the routing core, then blocks until interrupted.
func runNode(verbose bool, listen bool, dialPeer, dialAddress string) error {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		return err
	}

	log, err := observability.InitLogger("core-net", cfg.General.Verbose || verbose, cfg.General.LogFile)
	if err != nil {
		return err
	}
	log.Info().Str("config", cfgPath).Str("host", cfg.General.Name).Msg("starting")

	localScreen := screen.Geometry{
		Host:   cfg.General.Name,
		Width:  cfg.Screen.Width,
		Height: cfg.Screen.Height,
	}
	if !localScreen.Valid() {
		// No platform geometry probe is built in; fall back so the node can
		// still act as a target for remote control.
		localScreen.Width, localScreen.Height = 1920, 1080
		log.Warn().Msg("screen geometry not configured, assuming 1920x1080")
	}

	layout := screen.NewLayout(localScreen)
	for edgeName, neighbor := range cfg.Neighbors {
		edge, err := screen.ParseEdge(edgeName)
		if err != nil {
			return err
		}
		layout.SetNeighbor(localScreen.Host, edge, neighbor)
	}

	dataDir, err := config.ResolveDataDir()
	if err != nil {
		return err
	}
	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		// The node works without persistence; reconnects just lose the
		// endpoint fallback.
		log.Warn().Err(err).Msg("peer store unavailable, continuing without persistence")
		store = nil
	} else {
		defer store.Close()
		log.Debug().Str("path", dbPath).Msg("peer store open")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var scanner *discovery.PeerScanner
	if cfg.Network.EnableDiscovery {
		service, err := startDiscovery(cfg, localScreen, listen)
		if err != nil {
			log.Warn().Err(err).Msg("mDNS discovery unavailable")
		} else {
			defer service.Stop()
			scanner = service.Scanner
		}
	}

	sessionOpts := network.SessionManagerOptions{
		Options: network.Options{
			LocalScreen:       localScreen,
			ConnectionTimeout: time.Duration(cfg.Network.ConnectTimeoutMS) * time.Millisecond,
			HeartbeatInterval: time.Duration(cfg.Network.HeartbeatIntervalMS) * time.Millisecond,
			Logger:            log,
		},
	}
	if listen {
		sessionOpts.ListenAddress = cfg.ListenAddress()
	}
	if scanner != nil {
		sessionOpts.Resolver = scanner
	}
	if store != nil {
		sessionOpts.Store = store
	}

	sessions, err := network.NewSessionManager(sessionOpts)
	if err != nil {
		return err
	}
	if err := sessions.Start(); err != nil {
		return err
	}
	defer sessions.Stop()
	if listen {
		log.Info().Str("addr", sessions.Addr()).Msg("listening for peers")
	}

	if dialPeer != "" {
		if err := sessions.Connect(dialPeer, dialAddress); err != nil {
			return err
		}
	}
	for host, address := range cfg.Peers {
		if host == cfg.General.Name {
			continue
		}
		if err := sessions.Connect(host, address); err != nil {
			log.Warn().Err(err).Str("peer", host).Msg("connect")
		}
	}
	for _, neighbor := range cfg.Neighbors {
		if _, static := cfg.Peers[neighbor]; static || neighbor == dialPeer {
			continue
		}
		// Address comes from the peer store or mDNS at dial time.
		if err := sessions.Connect(neighbor, ""); err != nil {
			log.Warn().Err(err).Str("peer", neighbor).Msg("connect")
		}
	}

	capture, injector, clipboard := buildInputBackend(log)

	routerOpts := routing.Options{
		Layout:            layout,
		Capture:           capture,
		Injector:          injector,
		Clipboard:         clipboard,
		Transport:         sessions,
		DwellSamples:      cfg.Screen.DwellSamples,
		ClipboardEnabled:  cfg.Clipboard.Enabled,
		MaxClipboardBytes: cfg.Clipboard.MaxSizeBytes,
		Logger:            log,
	}
	if store != nil {
		routerOpts.Recorder = store
	}

	router, err := routing.NewRouter(routerOpts)
	if err != nil {
		return err
	}

	err = router.Run(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("shutting down")
	return nil
}

func startDiscovery(cfg *config.Config, localScreen screen.Geometry, broadcast bool) (*discovery.Service, error) {
	dcfg := discovery.Config{
		HostID:        cfg.General.HostID,
		HostName:      cfg.General.Name,
		ListeningPort: cfg.Network.Port,
		ScreenWidth:   localScreen.Width,
		ScreenHeight:  localScreen.Height,
	}

	if broadcast {
		return discovery.Start(dcfg)
	}

	scanner, err := discovery.NewPeerScanner(dcfg)
	if err != nil {
		return nil, err
	}
	if err := scanner.Start(); err != nil {
		return nil, err
	}
	return &discovery.Service{Scanner: scanner}, nil
}

// buildInputBackend selects the platform capture/injection hooks. Only the
// inert stubs are compiled in this tree; real backends slot in behind the
// input interfaces.
func buildInputBackend(log zerolog.Logger) (input.Capture, input.Injector, input.ClipboardSink) {
	return input.NewStubCapture(log), input.NewStubInjector(log), input.NewStubClipboard(log)
}

func runDiscover(args []string) error {
	flags := pflag.NewFlagSet("discover", pflag.ContinueOnError)
	timeout := flags.Duration("timeout", 3*time.Second, "scan duration")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, _, err := config.LoadOrCreate()
	if err != nil {
		return err
	}

	scanner, err := discovery.NewPeerScanner(discovery.Config{
		HostID:      cfg.General.HostID,
		ScanTimeout: *timeout,
	})
	if err != nil {
		return err
	}
	if err := scanner.Start(); err != nil {
		return err
	}
	defer scanner.Stop()

	time.Sleep(*timeout + 500*time.Millisecond)

	peers := scanner.ListPeers()
	if len(peers) == 0 {
		fmt.Println("no core-net nodes found")
		return nil
	}

	fmt.Printf("%-20s %-12s %-22s %s\n", "NAME", "SCREEN", "ENDPOINT", "HOST ID")
	for _, peer := range peers {
		endpoint, _ := peer.Endpoint()
		fmt.Printf("%-20s %-12s %-22s %s\n",
			peer.Name,
			fmt.Sprintf("%dx%d", peer.ScreenWidth, peer.ScreenHeight),
			endpoint,
			peer.HostID,
		)
	}
	return nil
}

// runInfo prints this node's identity, geometry, and file locations.
func runInfo(w io.Writer, args []string) error {
	flags := pflag.NewFlagSet("info", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		return err
	}
	dataDir, err := config.ResolveDataDir()
	if err != nil {
		return err
	}

	geometry := "not configured"
	if cfg.Screen.Width > 0 && cfg.Screen.Height > 0 {
		geometry = fmt.Sprintf("%dx%d", cfg.Screen.Width, cfg.Screen.Height)
	}

	fmt.Fprintf(w, "host:      %s\n", cfg.General.Name)
	fmt.Fprintf(w, "host id:   %s\n", cfg.General.HostID)
	fmt.Fprintf(w, "screen:    %s\n", geometry)
	fmt.Fprintf(w, "port:      %d\n", cfg.Network.Port)
	fmt.Fprintf(w, "data dir:  %s\n", dataDir)
	fmt.Fprintf(w, "config:    %s\n", cfgPath)
	for edge, host := range cfg.Neighbors {
		fmt.Fprintf(w, "neighbor:  %s -> %s\n", edge, host)
	}
	return nil
}

func runConfig(args []string) error {
	flags := pflag.NewFlagSet("config", pflag.ContinueOnError)
	generate := flags.Bool("generate", false, "print an annotated sample configuration")
	show := flags.Bool("show", false, "print the active configuration path and contents")
	output := flags.String("output", "", "write the sample to a file instead of stdout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	switch {
	case *generate:
		if *output != "" {
			if err := os.WriteFile(*output, []byte(config.Sample()), 0o600); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Printf("wrote %s\n", *output)
			return nil
		}
		fmt.Print(config.Sample())
		return nil

	case *show:
		_, path, err := config.LoadOrCreate()
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", path, raw)
		return nil

	default:
		return fmt.Errorf("config requires --generate or --show")
	}
}
