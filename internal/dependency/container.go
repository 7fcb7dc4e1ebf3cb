// Package dependency wires core cmdlink services using go.uber.org/dig.
package dependency

import (
	"path/filepath"

	"go.uber.org/dig"

	"github.com/cmdlink/cmdlink/internal/admin"
	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/bus"
	"github.com/cmdlink/cmdlink/internal/capture"
	"github.com/cmdlink/cmdlink/internal/channels"
	"github.com/cmdlink/cmdlink/internal/config"
	"github.com/cmdlink/cmdlink/internal/dispatch"
	"github.com/cmdlink/cmdlink/internal/gateway"
	"github.com/cmdlink/cmdlink/internal/registrar"
	"github.com/cmdlink/cmdlink/internal/scheduler"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	provider  *config.Provider
	msgBus    *bus.MessageBus
	store     *binding.Store
	processor *dispatch.Processor
	engine    *capture.Engine
	registrar *registrar.Registrar
	admin     *admin.Handler
	scheduler *scheduler.Service
	manager   *channels.Manager
	gateway   *gateway.Server
}

func (c *Container) Provider() *config.Provider      { return c.provider }
func (c *Container) MessageBus() *bus.MessageBus     { return c.msgBus }
func (c *Container) Store() *binding.Store           { return c.store }
func (c *Container) Processor() *dispatch.Processor  { return c.processor }
func (c *Container) Engine() *capture.Engine         { return c.engine }
func (c *Container) Registrar() *registrar.Registrar { return c.registrar }
func (c *Container) Admin() *admin.Handler           { return c.admin }
func (c *Container) Scheduler() *scheduler.Service   { return c.scheduler }
func (c *Container) Channels() *channels.Manager     { return c.manager }
func (c *Container) Gateway() *gateway.Server        { return c.gateway }

// New builds and wires all core services around the live config provider.
func New(provider *config.Provider) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Provider { return provider }); err != nil {
		return nil, err
	}
	if err := d.Provide(newMessageBus); err != nil {
		return nil, err
	}
	if err := d.Provide(dispatch.NewRouter); err != nil {
		return nil, err
	}
	if err := d.Provide(newStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newProcessor); err != nil {
		return nil, err
	}
	if err := d.Provide(newEngine); err != nil {
		return nil, err
	}
	if err := d.Provide(registrar.NewRegistrar); err != nil {
		return nil, err
	}
	if err := d.Provide(admin.NewHandler); err != nil {
		return nil, err
	}
	if err := d.Provide(newScheduler); err != nil {
		return nil, err
	}
	if err := d.Provide(newChannelManager); err != nil {
		return nil, err
	}
	if err := d.Provide(gateway.NewServer); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		msgBus *bus.MessageBus,
		store *binding.Store,
		processor *dispatch.Processor,
		engine *capture.Engine,
		reg *registrar.Registrar,
		adm *admin.Handler,
		sched *scheduler.Service,
		manager *channels.Manager,
		gw *gateway.Server,
	) {
		result = &Container{
			provider:  provider,
			msgBus:    msgBus,
			store:     store,
			processor: processor,
			engine:    engine,
			registrar: reg,
			admin:     adm,
			scheduler: sched,
			manager:   manager,
			gateway:   gw,
		}
	})
	return result, err
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(100)
}

func newStore(provider *config.Provider) *binding.Store {
	return binding.NewStore(provider)
}

func newProcessor(provider *config.Provider, b *bus.MessageBus, router *dispatch.Router) *dispatch.Processor {
	return dispatch.NewProcessor(provider, b, router)
}

func newEngine(provider *config.Provider, processor *dispatch.Processor, router *dispatch.Router, b *bus.MessageBus) *capture.Engine {
	return capture.NewEngine(provider, processor, router, b)
}

func newScheduler() *scheduler.Service {
	return scheduler.NewService(filepath.Join(config.DataDir(), "tasks.json"))
}

func newChannelManager(provider *config.Provider, b *bus.MessageBus) *channels.Manager {
	cfg := provider.Snapshot()
	return channels.NewManager(cfg, b)
}
