// Package registry translates instance-record events from the
// watched-store cache into a locality-ordered endpoint lookup,
// grounded on client/instancemonitor.go's mux-owned index and
// serviceinfo.go/query.go for the record shape and path layout.
package registry

import (
	"fmt"
	"path"
	"strconv"

	"github.com/skynetfabric/skynet"
)

// Instance is the published record for one running service endpoint
// (spec.md §3). UUID is deterministic: see skynet.InstanceUUID.
type Instance struct {
	UUID       string
	Name       string
	Version    string
	Region     string
	IP         string
	Port       int
	MaxPort    int
	Registered bool
}

// Endpoint is the "<host>:<port>" string used as a registry key's
// group member.
func (i Instance) Endpoint() string {
	return fmt.Sprintf("%s:%d", i.IP, i.Port)
}

func (i Instance) instancePath(root string) string {
	return path.Join(root, i.UUID)
}

// attrPath returns the leaf node path for one instance attribute.
func attrPath(root, uuid, attr string) string {
	return path.Join(root, uuid, attr)
}

func parsePort(s string) (int, error) {
	return strconv.Atoi(s)
}

func configFromService(cfg *skynet.ServiceConfig) Instance {
	inst := Instance{
		Name:    cfg.Name,
		Version: cfg.Version,
		Region:  cfg.Region,
	}
	if cfg.ServiceAddr != nil {
		inst.IP = cfg.ServiceAddr.IPAddress
		inst.Port = cfg.ServiceAddr.Port
		inst.MaxPort = cfg.ServiceAddr.MaxPort
	}
	inst.UUID = skynet.InstanceUUID(inst.IP, inst.Port, inst.Name, inst.Version)
	return inst
}
