package appenders

import (
	"fmt"

	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

// AppenderConstructor must be implemented by each Appender.
// It provides a basic no-arg constructor for instances of an Appender.
type AppenderConstructor interface {
	// New should return an instantiation of an Appender.
	// Configuration values should be passed and can be processed during `Init()`.
	New() Appender
}

// AppenderConstructorFunc is Constructor implementation for appenders
type AppenderConstructorFunc func() Appender

// New initializes an appender constructor
func (f AppenderConstructorFunc) New() Appender {
	return f()
}

// Appenders are the constructors to build appender plugins.
var Appenders = make(map[Kind]AppenderConstructor)

// Register is used to register Constructor implementations. This mechanism allows
// for loose coupling between the configuration and the implementation. It is extremely similar to the way sql.DB
// drivers are configured and used.
func Register(kind Kind, constructor AppenderConstructor) {
	if _, ok := Appenders[kind]; ok {
		panic(fmt.Errorf("appender %s already registered", kind))
	}
	Appenders[kind] = constructor
}

// AppenderConstructorByName returns an Appender constructor for the name provided
func AppenderConstructorByName(name string) (AppenderConstructor, error) {
	constructor, ok := Appenders[Kind(name)]
	if !ok {
		return nil, fmt.Errorf("no Appender Constructor for %s", name)
	}

	return constructor, nil
}

// Factory constructs appender instances for a kind. Constructing an
// appender performs no I/O; connections are opened by Init.
type Factory interface {
	New(kind Kind) (Appender, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(kind Kind) (Appender, error)

// New calls f(kind).
func (f FactoryFunc) New(kind Kind) (Appender, error) {
	return f(kind)
}

// RegistryFactory builds appenders from the registered constructors.
var RegistryFactory = FactoryFunc(func(kind Kind) (Appender, error) {
	constructor, err := AppenderConstructorByName(string(kind))
	if err != nil {
		return nil, err
	}
	return constructor.New(), nil
})

// AppenderMetadata returns the metadata of every registered appender in selection order.
func AppenderMetadata() (results []plugins.Metadata) {
	for _, kind := range AllKinds {
		if constructor, ok := Appenders[kind]; ok {
			results = append(results, constructor.New().Metadata())
		}
	}
	return
}
