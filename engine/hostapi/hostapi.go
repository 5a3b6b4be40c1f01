// Package hostapi names the interfaces a host application implements or
// consumes around the core. It carries no logic of its own -- a marker/
// capability-record package in the sense of spec.md 9's "Dynamic dispatch
// over inheritance hierarchies": the original's virtual base classes
// (SimulationFactory, ProxyManager, WebViewManager) become plain Go
// interfaces passed by reference instead of up-cast pointers, adapted from
// goworld's engine/service.Service marker-interface convention of naming a
// capability instead of embedding a base struct.
//
// Rendering (the Ogre plugin), the Awesomium overlay manager's actual
// browser engine, plugin loading, option parsing, and the process entry
// point are out of scope (spec.md 9, SPEC_FULL.md 6 Non-goals) -- only the
// contracts a host must satisfy to plug the core into one are represented.
package hostapi

import (
	"github.com/xiaonanln/worldlink/engine/cache"
	"github.com/xiaonanln/worldlink/engine/event"
	"github.com/xiaonanln/worldlink/engine/transport"
	"github.com/xiaonanln/worldlink/engine/wire"
)

// ObjectId identifies a host-side simulated object across the network
// (spec.md 9's SimulationFactory operates in terms of ids, not pointers).
type ObjectId uint64

// Proxy is a host-object stand-in the core can reference without knowing
// its concrete rendering/scripting representation.
type Proxy interface {
	Id() ObjectId
}

// SimulationFactory constructs and destroys Proxy values in response to
// dispatcher events, replacing the original's SimulationFactory singleton
// (spec.md 9 "Singletons" -- explicit construction and handle passing, no
// process-wide mutable state in the core).
type SimulationFactory interface {
	CreateProxy(id ObjectId, kind string) (Proxy, error)
	DestroyProxy(id ObjectId)
}

// ProxyManager tracks the live set of Proxy values a SimulationFactory has
// created, standing in for the original's host-object proxy manager.
type ProxyManager interface {
	Lookup(id ObjectId) (Proxy, bool)
	Range(func(Proxy) bool)
}

// OverlayManager is the host's 2D overlay surface (the Awesomium overlay
// manager in the original). The core never renders; it only needs a place
// to deliver decoded content once a cache fetch completes.
type OverlayManager interface {
	Invalidate(id ObjectId)
}

// PluginLoader loads host-side extensions before the connection to a peer
// is established. Plugin discovery and option parsing are host concerns;
// the core only needs plugins registered before Host.Run is called.
type PluginLoader interface {
	LoadPlugins() error
}

// Host is what a process entry point assembles: the wiring between a
// MultiplexedConnection, an EventDispatcher, a cache Chain and a
// SimulationFactory. The core provides the pieces; Host is implemented by
// the embedding application, not by the core itself.
type Host interface {
	Connection() *transport.MultiplexedConnection
	Dispatcher() *event.Dispatcher
	Cache() *cache.Chain
	Factory() SimulationFactory
	Proxies() ProxyManager
	Overlay() OverlayManager

	// Run drives the host's event loop until the connection reaches
	// transport.StateClosed.
	Run() error
}

// ControlHandler lets a Host observe control-stream traffic (spec.md 6)
// without the core importing anything host-specific.
type ControlHandler interface {
	OnPing(nonce uint64)
	OnPong(nonce uint64)
	OnStreamOpened(id wire.StreamId)
	OnStreamClosed(id wire.StreamId)
}
