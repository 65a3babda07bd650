package registry

import "fmt"

// ServiceDiscovered and ServiceRemoved are Stringer-struct log events
// in the teacher's idiom (logmessages.go), retargeted at
// registry.Instance instead of the teacher's ServiceInfo.
type ServiceDiscovered struct {
	Instance Instance
}

func (sd ServiceDiscovered) String() string {
	return fmt.Sprintf("discovered %q v%s at %s", sd.Instance.Name, sd.Instance.Version, sd.Instance.Endpoint())
}

type ServiceRemoved struct {
	Instance Instance
}

func (sr ServiceRemoved) String() string {
	return fmt.Sprintf("removed %q v%s at %s", sr.Instance.Name, sr.Instance.Version, sr.Instance.Endpoint())
}
