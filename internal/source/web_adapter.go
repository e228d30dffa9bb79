package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controla la sesión de navegador del adaptador.
type Config struct {
	URL              string
	Headless         bool
	BrowserBin       string
	UserDataDir      string
	PollInterval     time.Duration
	HandshakeTimeout time.Duration // 0 = esperar indefinidamente la acción manual
}

// driver aísla la automatización de navegador del resto del adaptador,
// de modo que la máquina de estados se pruebe sin Chrome.
type driver interface {
	Open(ctx context.Context) error
	// WaitHandshake devuelve el código del artefacto, o already=true si la
	// sesión ya estaba autenticada y no hay artefacto que mostrar.
	WaitHandshake(ctx context.Context) (code string, already bool, err error)
	WaitAuthenticated(ctx context.Context) error
	OpenGroup(ctx context.Context, name string) error
	Observe(ctx context.Context, name string, emit func(group string, msg RawMessage)) error
	Close() error
}

// WebAdapter es dueño de una única sesión de navegador contra el cliente
// de chat externo. Una sola página implica un solo observador vivo: llamar
// Monitor para un grupo nuevo re-apunta la observación a ese grupo, aunque
// los registros anteriores se conservan.
type WebAdapter struct {
	logger *zap.Logger
	drv    driver
	bus    *Bus

	mu                 sync.Mutex
	state              State
	monitored          map[string]struct{}
	handshakePublished bool
	cancel             context.CancelFunc
	lifetime           context.Context

	handshakeTimeout time.Duration
}

func NewWebAdapter(cfg Config, logger *zap.Logger) *WebAdapter {
	return newWebAdapter(newRodDriver(cfg, logger), cfg.HandshakeTimeout, logger)
}

func newWebAdapter(drv driver, handshakeTimeout time.Duration, logger *zap.Logger) *WebAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebAdapter{
		logger:           logger,
		drv:              drv,
		bus:              NewBus(),
		state:            StateUninitialized,
		monitored:        make(map[string]struct{}),
		handshakeTimeout: handshakeTimeout,
	}
}

func (a *WebAdapter) OnMessage(fn func(MessageEvent))     { a.bus.OnMessage(fn) }
func (a *WebAdapter) OnHandshake(fn func(HandshakeEvent)) { a.bus.OnHandshake(fn) }
func (a *WebAdapter) OnAuthenticated(fn func())           { a.bus.OnAuthenticated(fn) }

// State devuelve el estado actual del adaptador.
func (a *WebAdapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Monitored devuelve los nombres de grupo registrados.
func (a *WebAdapter) Monitored() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.monitored))
	for name := range a.monitored {
		names = append(names, name)
	}
	return names
}

// Initialize lanza la sesión, espera el artefacto de autenticación, lo
// publica una sola vez y espera la marca de sesión autenticada.
func (a *WebAdapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateUninitialized {
		a.mu.Unlock()
		return fmt.Errorf("%w: adapter already initialized", ErrInitialization)
	}
	lifetime, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.lifetime = lifetime
	a.cancel = cancel
	a.state = StateAwaitingHandshake
	a.mu.Unlock()

	if err := a.drv.Open(ctx); err != nil {
		a.reset()
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	waitCtx := ctx
	if a.handshakeTimeout > 0 {
		var cancelWait context.CancelFunc
		waitCtx, cancelWait = context.WithTimeout(ctx, a.handshakeTimeout)
		defer cancelWait()
	}

	code, already, err := a.drv.WaitHandshake(waitCtx)
	if err != nil {
		a.reset()
		return fmt.Errorf("%w: waiting handshake artifact: %v", ErrHandshake, err)
	}

	if already {
		a.logger.Info("source session already authenticated")
	} else {
		a.publishHandshakeOnce(code)
		if err := a.drv.WaitAuthenticated(waitCtx); err != nil {
			a.reset()
			return fmt.Errorf("%w: waiting authenticated marker: %v", ErrHandshake, err)
		}
	}

	a.mu.Lock()
	a.state = StateAuthenticated
	a.mu.Unlock()

	a.logger.Info("source adapter authenticated")
	a.bus.PublishAuthenticated()
	return nil
}

// Monitor registra la observación de un grupo. Idempotente: un nombre ya
// registrado es un no-op y no re-adjunta la observación.
func (a *WebAdapter) Monitor(ctx context.Context, groupName string) error {
	groupName = strings.TrimSpace(groupName)
	if groupName == "" {
		return errors.New("source: empty group name")
	}

	a.mu.Lock()
	if a.state != StateAuthenticated && a.state != StateObserving {
		state := a.state
		a.mu.Unlock()
		return fmt.Errorf("%w: monitor while %s", ErrNotAuthenticated, state)
	}
	if _, ok := a.monitored[groupName]; ok {
		a.mu.Unlock()
		return nil
	}
	lifetime := a.lifetime
	a.mu.Unlock()

	if err := a.drv.OpenGroup(ctx, groupName); err != nil {
		return fmt.Errorf("open group %q: %w", groupName, err)
	}
	if err := a.drv.Observe(lifetime, groupName, func(group string, msg RawMessage) {
		a.bus.PublishMessage(MessageEvent{GroupName: group, Message: msg})
	}); err != nil {
		return fmt.Errorf("observe group %q: %w", groupName, err)
	}

	a.mu.Lock()
	a.monitored[groupName] = struct{}{}
	a.state = StateObserving
	a.mu.Unlock()

	a.logger.Info("monitoring group", zap.String("group", groupName))
	return nil
}

// Cleanup cierra la sesión de navegador y deja el adaptador listo para un
// nuevo ciclo. Es seguro llamarlo varias veces seguidas.
func (a *WebAdapter) Cleanup() error {
	a.mu.Lock()
	if a.state == StateUninitialized && a.cancel == nil {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	if err := a.drv.Close(); err != nil {
		a.logger.Warn("closing source session", zap.Error(err))
	}
	a.reset()
	return nil
}

func (a *WebAdapter) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.lifetime = nil
	a.monitored = make(map[string]struct{})
	a.handshakePublished = false
	a.state = StateUninitialized
}

func (a *WebAdapter) publishHandshakeOnce(code string) {
	a.mu.Lock()
	if a.handshakePublished {
		a.mu.Unlock()
		return
	}
	a.handshakePublished = true
	a.mu.Unlock()
	a.bus.PublishHandshake(HandshakeEvent{Code: code})
}
