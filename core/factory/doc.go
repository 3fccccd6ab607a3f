// Package factory provides a small generic registry used to instantiate
// pluggable modules (travel providers, metrics sinks) from configuration.
// A module is described by a type string and a map of raw settings; the
// registered factory decodes the settings into a typed struct and returns
// the concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[travel.Provider]()
//	reg.Register("static", func(conf map[string]any) (travel.Provider, error) {
//	    var c travel.StaticConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return travel.NewStaticProvider(c), nil
//	})
//	p, err := reg.Create(factory.ModuleConfig{Type: "static", Conf: raw})
package factory
