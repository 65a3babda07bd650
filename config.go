package skynet

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
)

var portMutex sync.Mutex

// MaxPortRetries bounds how many times BindAddr.Listen will increment
// the port on "address in use" before giving up (spec.md §4.G).
const MaxPortRetries = 999

// BindAddr is a host:port, optionally with a port range
// ("host:port-maxport") that Listen will walk on conflict.
type BindAddr struct {
	IPAddress string
	Port      int
	MaxPort   int
}

// BindAddrFromString parses "host:port" or "host:port-maxport".
func BindAddrFromString(host string) (ba *BindAddr, err error) {
	if host == "" {
		return
	}
	split := strings.Index(host, ":")
	if split == -1 {
		err = fmt.Errorf("must specify a port for address (got %q)", host)
		return
	}

	ba = &BindAddr{}

	ba.IPAddress = host[:split]
	if ba.IPAddress == "" {
		ba.IPAddress = "0.0.0.0"
	}

	portstr := host[split+1:]
	if ba.Port, err = strconv.Atoi(portstr); err == nil {
		ba.MaxPort = ba.Port + MaxPortRetries
		return
	}

	rindex := strings.Index(portstr, "-")
	if rindex == -1 {
		err = fmt.Errorf("couldn't process port for %q: %w", host, err)
		return
	}

	maxPortStr := portstr[rindex+1:]
	portstr = portstr[:rindex]

	if ba.Port, err = strconv.Atoi(portstr); err != nil {
		err = fmt.Errorf("couldn't process port for %q: %w", host, err)
		return
	}
	if ba.MaxPort, err = strconv.Atoi(maxPortStr); err != nil {
		err = fmt.Errorf("couldn't process port for %q: %w", host, err)
		return
	}

	return
}

func (ba *BindAddr) String() string {
	if ba == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", ba.IPAddress, ba.Port)
}

// Listen binds a TCP listener, walking the port range on "address in
// use" up to MaxPortRetries times before failing (spec.md §4.G).
func (ba *BindAddr) Listen() (listener *net.TCPListener, err error) {
	// Admin and RPC listeners must not race for the same port.
	portMutex.Lock()
	defer portMutex.Unlock()

	startPort := ba.Port
	maxPort := ba.MaxPort
	if maxPort < startPort {
		maxPort = startPort
	}

	for {
		var laddr *net.TCPAddr
		laddr, err = net.ResolveTCPAddr("tcp", ba.String())
		if err != nil {
			return nil, err
		}
		listener, err = net.ListenTCP("tcp", laddr)
		if err == nil {
			return
		}
		if ba.Port < maxPort && ba.Port-startPort < MaxPortRetries {
			ba.Port++
			continue
		}
		return nil, fmt.Errorf("no free port found in [%d, %d]: %w", startPort, maxPort, err)
	}
}

// ServiceConfig is the process-level identity of a bound service
// instance (spec.md §3's Instance record, minus Registered which is
// tracked by the registry, not the flag layer).
type ServiceConfig struct {
	UUID        string
	Name        string
	Version     string
	Region      string
	ServiceAddr *BindAddr
	AdminAddr   *BindAddr
}

func GetDefaultEnvVar(name, def string) (v string) {
	v = os.Getenv(name)
	if v == "" {
		v = def
	}
	return
}

func FlagsForService(scfg *ServiceConfig, flagset *flag.FlagSet) {
	flagset.StringVar(&scfg.Region, "region", GetDefaultEnvVar("SKYNET_REGION", DefaultRegion), "region service is located in")
	flagset.StringVar(&scfg.Version, "version", DefaultVersion, "version of service")
}

func GetServiceConfig() (config *ServiceConfig, args []string) {
	return GetServiceConfigFromFlags(os.Args[1:])
}

func ParseServiceFlags(scfg *ServiceConfig, flagset *flag.FlagSet, argv []string) (config *ServiceConfig, args []string) {
	rpcAddr := flagset.String("l", GetDefaultBindAddr(), "host:port to listen on for RPC")

	err := flagset.Parse(argv)
	args = flagset.Args()
	if err == flag.ErrHelp {
		args = append(args, "-help")
	}

	rpcBA, err := BindAddrFromString(*rpcAddr)
	if err != nil {
		panic(err)
	}

	scfg.ServiceAddr = rpcBA

	return scfg, args
}

func GetServiceConfigFromFlags(argv []string) (config *ServiceConfig, args []string) {
	config = &ServiceConfig{}

	flagset := flag.NewFlagSet("config", flag.ContinueOnError)

	FlagsForService(config, flagset)

	return ParseServiceFlags(config, flagset, argv)
}

func getFlagName(f string) (name string) {
	if len(f) == 0 || f[0] != '-' {
		return
	}
	minusCount := 1
	if len(f) > 1 && f[1] == '-' {
		minusCount++
	}
	f = f[minusCount:]

	for i := 0; i < len(f); i++ {
		if f[i] == '=' || f[i] == ' ' {
			break
		}
		name += string(f[i])
	}
	return
}

// SplitFlagsetFromArgs separates the args a flagset understands from
// everything else, so callers can layer multiple flag.FlagSets over
// one os.Args (e.g. service flags + viper config flags).
func SplitFlagsetFromArgs(flagset *flag.FlagSet, args []string) (flagsetArgs []string, additionalArgs []string) {
	for _, f := range args {
		if flagset.Lookup(getFlagName(f)) != nil {
			flagsetArgs = append(flagsetArgs, f)
		} else {
			additionalArgs = append(additionalArgs, f)
		}
	}
	return
}
