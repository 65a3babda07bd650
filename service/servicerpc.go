package service

import (
	"fmt"
	"reflect"
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/skynetfabric/skynet"
)

var (
	requestInfoPtrType = reflect.TypeOf(&skynet.RequestInfo{})

	anError   error
	errorType = reflect.TypeOf(&anError).Elem()
)

// ServiceRPC dispatches every call a Server receives through one
// method: Forward looks up the real method by name and invokes it on
// the delegate via reflection, grounded on service/servicerpc.go's
// ServiceRPC.Forward.
type ServiceRPC struct {
	server      *Server
	methods     map[string]reflect.Value
	MethodNames []string
}

var reservedMethodNames = map[string]bool{}

func init() {
	var sd ServiceDelegate
	t := reflect.ValueOf(&sd).Elem().Type()
	for i := 0; i < t.NumMethod(); i++ {
		reservedMethodNames[t.Method(i).Name] = true
	}
}

// NewServiceRPC scans s.Delegate's exported methods for the shape
// func(*skynet.RequestInfo, In, Out) error and registers each as a callable
// RPC method.
func NewServiceRPC(s *Server) *ServiceRPC {
	srpc := &ServiceRPC{
		server:  s,
		methods: make(map[string]reflect.Value),
	}

	typ := reflect.TypeOf(s.Delegate)
	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		if reservedMethodNames[m.Name] || m.PkgPath != "" {
			continue
		}

		f := m.Func
		ftyp := f.Type()

		if ftyp.NumIn() != 4 || ftyp.In(1) != requestInfoPtrType {
			s.Log.Item(fmt.Errorf("service: skipping %q: expected func(*skynet.RequestInfo, In, Out) error", m.Name))
			continue
		}
		switch ftyp.In(3).Kind() {
		case reflect.Ptr, reflect.Map:
		default:
			s.Log.Item(fmt.Errorf("service: skipping %q: Out parameter must be a pointer or map", m.Name))
			continue
		}
		if ftyp.NumOut() != 1 || ftyp.Out(0) != errorType {
			s.Log.Item(fmt.Errorf("service: skipping %q: must return exactly one error", m.Name))
			continue
		}

		srpc.methods[m.Name] = f
		srpc.MethodNames = append(srpc.MethodNames, m.Name)
	}

	return srpc
}

// Forward is the single entry point for client calls: Server.handleConn
// passes each decoded skynet.Request here directly, and it is dispatched by
// in.Method to the matching delegate method (spec.md §4.E/§6).
func (srpc *ServiceRPC) Forward(in skynet.Request, out *skynet.Response) error {
	srpc.server.activeRequests.Add(1)
	defer srpc.server.activeRequests.Done()

	clientInfo, ok := srpc.server.getClientInfo(in.ClientID)
	if !ok {
		err := fmt.Errorf("service: unknown ClientID %q", in.ClientID)
		srpc.server.Log.Item(MethodError{MethodName: in.Method, Error: err})
		return err
	}

	ri := skynet.RequestInfoFromWire(in.RequestInfo, clientInfo.Address)

	m, ok := srpc.methods[in.Method]
	if !ok {
		err := fmt.Errorf("service: no such method %q", in.Method)
		srpc.server.Log.Item(MethodError{RequestInfo: ri, MethodName: in.Method, Error: err})
		return err
	}

	srpc.server.Log.Item(MethodCall{RequestInfo: ri, MethodName: in.Method})

	inValuePtr := reflect.New(m.Type().In(2))
	if err := bson.Unmarshal(in.In.Data, inValuePtr.Interface()); err != nil {
		err = fmt.Errorf("service: unmarshal params for %q: %w", in.Method, err)
		srpc.server.Log.Item(MethodError{RequestInfo: ri, MethodName: in.Method, Error: err})
		return err
	}

	outType := m.Type().In(3)
	var outValue reflect.Value
	switch outType.Kind() {
	case reflect.Ptr:
		outValue = reflect.New(outType.Elem())
		if outType.Elem().Kind() == reflect.Map {
			outValue.Elem().Set(reflect.MakeMap(outType.Elem()))
		}
	case reflect.Map:
		outValue = reflect.MakeMap(outType)
	}

	start := time.Now()
	returns := m.Call([]reflect.Value{
		reflect.ValueOf(srpc.server.Delegate),
		reflect.ValueOf(ri),
		inValuePtr.Elem(),
		outValue,
	})
	duration := time.Since(start)

	srpc.server.Log.Item(MethodCompletion{RequestInfo: ri, MethodName: in.Method, Duration: duration})

	var methodErr error
	if erri := returns[0].Interface(); erri != nil {
		methodErr = erri.(error)
	}

	// A raising handler responds with {exception: {class, message,
	// backtrace}} as the normal reply, not through Response.error
	// (spec.md §4.G/§8 scenario 3): the client's decode of Response.out
	// succeeds either way, and the exception travels as ordinary payload.
	var data []byte
	var err error
	if methodErr != nil {
		data, err = bson.Marshal(bson.M{"exception": exceptionPayload(methodErr)})
		srpc.server.Log.Item(MethodError{RequestInfo: ri, MethodName: in.Method, Error: methodErr})
	} else {
		data, err = bson.Marshal(outValue.Interface())
	}
	if err != nil {
		err = fmt.Errorf("service: marshal response for %q: %w", in.Method, err)
		srpc.server.Log.Item(MethodError{RequestInfo: ri, MethodName: in.Method, Error: err})
		return err
	}
	out.Out = bson.Binary{Data: data}

	srpc.server.recordMethodStat(in.Method, duration, methodErr)

	return nil
}

// exceptionPayload builds the {class, message, backtrace} document
// spec.md §4.G specifies for a raising handler. Go has no portable
// runtime backtrace for an arbitrary error value, so backtrace is
// always empty; class is the error's concrete Go type name.
func exceptionPayload(err error) bson.M {
	return bson.M{
		"class":     fmt.Sprintf("%T", err),
		"message":   err.Error(),
		"backtrace": []string{},
	}
}
