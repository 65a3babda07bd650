// Command skynetd is the thin launcher a host runs to stand up the
// shared fabric infrastructure a skynet service binary attaches to:
// the store connection, the local registry cache, and the instance
// registry itself (spec.md §6). Individual services are still their
// own compiled Go binaries built around service.CreateServer — Go has
// no runtime mechanism for loading arbitrary service code from a
// directory the way the original daemon's services_path did, so this
// launcher's "server" command instead brings up the infrastructure a
// service process discovers over net.Dial and blocks, the way
// examples/service/service.go blocks on Start().Wait().
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/config"
	"github.com/skynetfabric/skynet/registry"
	"github.com/skynetfabric/skynet/store"
	"github.com/skynetfabric/skynet/store/cache"
	"github.com/skynetfabric/skynet/store/doozerstore"
	"github.com/skynetfabric/skynet/store/zkstore"
)

const defaultServicesPath = "app/services"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: skynetd <server>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "server":
		runServer(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "skynetd: unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}

func runServer(argv []string) {
	flagset := flag.NewFlagSet("server", flag.ExitOnError)
	flagset.Parse(argv)

	env := skynet.GetDefaultEnvVar("SKYNET_ENV", "development")
	cfgPath := os.Getenv("SKYNET_CONFIG")

	zlog, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "skynetd: build logger: %s\n", err)
		os.Exit(1)
	}
	log := skynet.NewZapLogger("skynetd", zlog.With(zap.String("env", env)))

	loader, err := config.New(cfgPath)
	if err != nil {
		log.Panic(fmt.Errorf("skynetd: %w", err))
	}
	loader.Watch(func(e fsnotify.Event) {
		log.Println(fmt.Sprintf("skynetd: config changed: %s", e.Name))
	})

	servicesPath := loader.StringDefault("services_path", defaultServicesPath)
	serverPort := loader.StringDefault("server_port", "2000")
	region := loader.StringDefault("region", skynet.DefaultRegion)

	localIP := loader.StringDefault("local_ip", "")
	if localIP == "" {
		ip, err := config.LocalIP()
		if err != nil {
			log.Panic(fmt.Errorf("skynetd: detect local ip: %w", err))
		}
		localIP = ip.String()
	}

	warnUnrecognizedOptions(loader, log)

	log.Println(fmt.Sprintf(
		"skynetd: region=%s services_path=%s server_port=%s local_ip=%s",
		region, servicesPath, serverPort, localIP,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := openStore(loader, log)
	defer st.Close()

	root := "/skynet"
	c, err := cache.Open(ctx, st, root, log)
	if err != nil {
		log.Panic(fmt.Errorf("skynetd: open cache: %w", err))
	}
	defer c.Close()

	reg := registry.Open(ctx, c, net.ParseIP(localIP), log)
	_ = reg

	log.Println("skynetd: infrastructure up, blocking until signal")
	waitForSignal(log)
}

// openStore dials the configured backend (spec.md §4.H's
// registry.backend: zk|doozer), defaulting to zookeeper's conventional
// localhost address when no servers are listed.
func openStore(loader *config.Loader, log skynet.Logger) store.Store {
	backend := loader.StringDefault("registry.backend", "zk")
	servers := loader.StringSliceDefault("registry.servers", []string{"127.0.0.1:2181"})

	switch backend {
	case "doozer":
		s, err := doozerstore.Dial(servers[0], log)
		if err != nil {
			log.Panic(fmt.Errorf("skynetd: dial doozer: %w", err))
		}
		return s
	case "zk":
		timeoutSec := loader.IntDefault("registry.connect_timeout", 10)

		s, err := zkstore.Dial(servers, timeoutSec, log)
		if err != nil {
			log.Panic(fmt.Errorf("skynetd: dial zookeeper: %w", err))
		}
		return s
	default:
		log.Panic(fmt.Errorf("skynetd: unrecognized registry.backend %q", backend))
		return nil
	}
}

// warnUnrecognizedOptions logs (but never rejects) any top-level config
// key outside the known set below. It logs through log.Println, which
// ZapLogger records at info level, not at warning level.
func warnUnrecognizedOptions(loader *config.Loader, log skynet.Logger) {
	known := map[string]bool{
		"region": true, "services_path": true, "server_port": true,
		"local_ip": true, "registry": true,
	}
	for _, key := range loader.TopLevelKeys() {
		if !known[strings.ToLower(key)] {
			log.Println(fmt.Sprintf("skynetd: unrecognized config option %q", key))
		}
	}
}

func waitForSignal(log skynet.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	log.Println(fmt.Sprintf("skynetd: got signal %s, shutting down", sig))
}
