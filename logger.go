package skynet

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Logger is the logging interface threaded through every package that
// can produce an operational event: store adapters, the registry, the
// client, and the service runtime (spec.md's ambient stack).
type Logger interface {
	// Item logs a single structured event. Anything that implements
	// fmt.Stringer is logged as its string form; anything else is
	// logged as a structured field under its type name.
	Item(item interface{})
	// Panic logs item, then panics with it.
	Panic(item interface{})
	// Println logs a free-form message, for call sites not yet
	// converted to structured Item events.
	Println(items ...interface{})
}

func MakeJObj(item interface{}) map[string]interface{} {
	return map[string]interface{}{
		"time":                  time.Now(),
		fmt.Sprintf("%T", item): item,
	}
}

// MultiLogger fans a single Logger call out to several.
type MultiLogger []Logger

func NewMultiLogger(loggers ...Logger) MultiLogger {
	return MultiLogger(loggers)
}

func (ml MultiLogger) Item(item interface{}) {
	for _, l := range ml {
		l.Item(item)
	}
}

func (ml MultiLogger) Println(items ...interface{}) {
	for _, l := range ml {
		l.Println(items...)
	}
}

func (ml MultiLogger) Panic(item interface{}) {
	for _, l := range ml {
		l.Item(item)
	}
	panic(item)
}

// ZapLogger implements Logger over a *zap.Logger, replacing the
// teacher's ConsoleLogger/MongoLogger pair with the structured,
// leveled sink the rest of the pack (ceyewan-genesis) uses throughout.
type ZapLogger struct {
	z    *zap.Logger
	name string
}

func NewZapLogger(name string, z *zap.Logger) *ZapLogger {
	return &ZapLogger{z: z, name: name}
}

// NewProductionLogger builds a ZapLogger with zap's JSON production
// config, named for the component emitting events (e.g. a service's
// UUID or "registry").
func NewProductionLogger(name string) (*ZapLogger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(name, z), nil
}

func (zl *ZapLogger) Item(item interface{}) {
	switch v := item.(type) {
	case fmt.Stringer:
		zl.z.Info(v.String(), zap.String("component", zl.name), zap.String("type", fmt.Sprintf("%T", v)))
	case string:
		zl.z.Info(v, zap.String("component", zl.name))
	case error:
		zl.z.Error(v.Error(), zap.String("component", zl.name))
	default:
		zl.z.Info("event", zap.String("component", zl.name), zap.Any("event", v), zap.String("type", fmt.Sprintf("%T", v)))
	}
}

func (zl *ZapLogger) Println(items ...interface{}) {
	zl.z.Sugar().Infoln(items...)
}

func (zl *ZapLogger) Panic(item interface{}) {
	zl.Item(item)
	zl.z.Sugar().Panic(item)
}

func (zl *ZapLogger) Sync() error {
	return zl.z.Sync()
}
