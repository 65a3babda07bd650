package service

import (
	"fmt"
	"syscall"
	"time"

	"github.com/skynetfabric/skynet"
)

// RegisteredMethods, MethodCall, MethodCompletion, MethodError,
// KillSignal, ServiceListening, ServiceRegistered and
// ServiceUnregistered are the Stringer-struct log events a Server
// emits through its Logger, in the teacher's logmessages.go idiom.

type RegisteredMethods struct {
	Methods []string
}

func (rm RegisteredMethods) String() string {
	return fmt.Sprintf("registered methods: %v", rm.Methods)
}

type MethodCall struct {
	RequestInfo *skynet.RequestInfo
	MethodName  string
}

func (mc MethodCall) String() string {
	return fmt.Sprintf("method %q called with RequestInfo %+v", mc.MethodName, mc.RequestInfo)
}

type MethodCompletion struct {
	RequestInfo *skynet.RequestInfo
	MethodName  string
	Duration    time.Duration
}

func (mc MethodCompletion) String() string {
	return fmt.Sprintf("method %q completed in %s", mc.MethodName, mc.Duration)
}

type MethodError struct {
	RequestInfo *skynet.RequestInfo
	MethodName  string
	Error       error
}

func (me MethodError) String() string {
	return fmt.Sprintf("method %q failed: %s", me.MethodName, me.Error)
}

type KillSignal struct {
	Signal syscall.Signal
}

func (ks KillSignal) String() string {
	return fmt.Sprintf("got kill signal %q", ks.Signal)
}

type ServiceListening struct {
	Config *skynet.ServiceConfig
	Addr   *skynet.BindAddr
}

func (sl ServiceListening) String() string {
	return fmt.Sprintf("service %q %q listening on %s in region %q", sl.Config.Name, sl.Config.Version, sl.Addr, sl.Config.Region)
}

type ServiceRegistered struct {
	Config *skynet.ServiceConfig
}

func (sr ServiceRegistered) String() string {
	return fmt.Sprintf("service %q registered", sr.Config.Name)
}

type ServiceUnregistered struct {
	Config *skynet.ServiceConfig
}

func (su ServiceUnregistered) String() string {
	return fmt.Sprintf("service %q unregistered", su.Config.Name)
}
