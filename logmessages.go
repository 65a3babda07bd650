package skynet

import "fmt"

// StoreConnected, StoreDisconnected and StoreSessionExpired are emitted
// by the store adapters (doozerstore, zkstore) through a Logger, in the
// Stringer-struct idiom the teacher uses for structured log events
// (logmessages.go).
type StoreConnected struct {
	Backend string
	Addr    string
}

func (sc StoreConnected) String() string {
	return fmt.Sprintf("connected to %s store at %s", sc.Backend, sc.Addr)
}

type StoreDisconnected struct {
	Backend string
	Addr    string
	Err     error
}

func (sd StoreDisconnected) String() string {
	return fmt.Sprintf("lost connection to %s store at %s: %v", sd.Backend, sd.Addr, sd.Err)
}

type StoreSessionExpired struct {
	Backend string
}

func (se StoreSessionExpired) String() string {
	return fmt.Sprintf("%s session expired, rebootstrapping watches", se.Backend)
}

type ServiceCreated struct {
	Config *ServiceConfig
}

func (sc ServiceCreated) String() string {
	return fmt.Sprintf("created service %q version %q", sc.Config.Name, sc.Config.Version)
}

type AdminListening struct {
	Config *ServiceConfig
}

func (al AdminListening) String() string {
	return fmt.Sprintf("admin listening for %q", al.Config.Name)
}
