package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Selectores acoplados al DOM del cliente web externo. Si el cliente cambia
// su markup, esto es lo primero que hay que revisar.
const (
	qrSelector   = `div[data-ref]`
	authSelector = `#pane-side`
	chatSelector = `#main`
)

type rodDriver struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	drainOnce sync.Once
	emitMu    sync.Mutex
	emit      func(group string, msg RawMessage)
}

func newRodDriver(cfg Config, logger *zap.Logger) *rodDriver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rodDriver{cfg: cfg, logger: logger}
}

func (d *rodDriver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		return errors.New("browser session already open")
	}

	l := launcher.New().Headless(d.cfg.Headless)
	if d.cfg.BrowserBin != "" {
		l = l.Bin(d.cfg.BrowserBin)
	}
	if d.cfg.UserDataDir != "" {
		l = l.UserDataDir(d.cfg.UserDataDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: d.cfg.URL})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("open chat page: %w", err)
	}

	d.launcher = l
	d.browser = browser
	d.page = page
	return nil
}

func (d *rodDriver) WaitHandshake(ctx context.Context) (string, bool, error) {
	page := d.currentPage()
	if page == nil {
		return "", false, errors.New("no open page")
	}

	var code string
	var already bool
	err := d.poll(ctx, func() (bool, error) {
		if has, _, err := page.Has(authSelector); err == nil && has {
			already = true
			return true, nil
		}
		has, el, err := page.Has(qrSelector)
		if err != nil || !has {
			return false, nil
		}
		ref, err := el.Attribute("data-ref")
		if err != nil || ref == nil || *ref == "" {
			return false, nil
		}
		code = *ref
		return true, nil
	})
	return code, already, err
}

func (d *rodDriver) WaitAuthenticated(ctx context.Context) error {
	page := d.currentPage()
	if page == nil {
		return errors.New("no open page")
	}
	return d.poll(ctx, func() (bool, error) {
		has, _, err := page.Has(authSelector)
		if err != nil {
			return false, nil
		}
		return has, nil
	})
}

func (d *rodDriver) OpenGroup(ctx context.Context, name string) error {
	page := d.currentPage()
	if page == nil {
		return errors.New("no open page")
	}

	res, err := page.Context(ctx).Evaluate(rod.Eval(`
		(name) => {
			const spans = document.querySelectorAll('#pane-side span[title]');
			for (const el of spans) {
				if (el.getAttribute('title') === name) {
					el.click();
					return true;
				}
			}
			return false;
		}
	`, name))
	if err != nil {
		return fmt.Errorf("select group: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("group %q not present in chat list", name)
	}

	// La vista de conversación tarda un instante en montar.
	return d.poll(ctx, func() (bool, error) {
		has, _, err := page.Has(chatSelector)
		if err != nil {
			return false, nil
		}
		return has, nil
	})
}

// Observe inyecta un MutationObserver que normaliza cada nodo de mensaje
// nuevo y lo encola etiquetado con el grupo. Una inyección posterior
// desconecta el observador anterior: la página es una sola.
func (d *rodDriver) Observe(ctx context.Context, name string, emit func(group string, msg RawMessage)) error {
	page := d.currentPage()
	if page == nil {
		return errors.New("no open page")
	}

	d.emitMu.Lock()
	d.emit = emit
	d.emitMu.Unlock()

	_, err := page.Context(ctx).Evaluate(rod.Eval(`
		(group) => {
			const container = document.querySelector('#main');
			if (!container) return false;
			if (window.__groupwireObserver) {
				window.__groupwireObserver.disconnect();
			}
			window.__groupwireQueue = window.__groupwireQueue || [];

			const push = (row) => {
				const textEl = row.querySelector('span.selectable-text');
				const img = row.querySelector('img[src]');
				let sender = '';
				const preEl = row.querySelector('div[data-pre-plain-text]');
				if (preEl) {
					const pre = preEl.getAttribute('data-pre-plain-text') || '';
					const match = pre.match(/\] (.*?):/);
					if (match) sender = match[1];
				}
				window.__groupwireQueue.push({
					group: group,
					id: row.getAttribute('data-id') || '',
					content: textEl ? textEl.innerText : '',
					sender: sender,
					ts: Date.now(),
					is_media: !!img && !textEl,
					media_url: img ? img.src : ''
				});
			};

			const obs = new MutationObserver((mutations) => {
				mutations.forEach((m) => {
					m.addedNodes.forEach((node) => {
						if (!(node instanceof HTMLElement)) return;
						if (node.matches('div.message-in, div.message-out')) {
							push(node);
							return;
						}
						node.querySelectorAll('div.message-in, div.message-out').forEach(push);
					});
				});
			});
			obs.observe(container, { childList: true, subtree: true });
			window.__groupwireObserver = obs;
			return true;
		}
	`, name))
	if err != nil {
		return fmt.Errorf("attach observer: %w", err)
	}

	d.drainOnce.Do(func() {
		go d.drainLoop(ctx)
	})
	return nil
}

type wireMessage struct {
	Group    string  `json:"group"`
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Sender   string  `json:"sender"`
	TS       float64 `json:"ts"`
	IsMedia  bool    `json:"is_media"`
	MediaURL string  `json:"media_url"`
}

func (d *rodDriver) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		page := d.currentPage()
		if page == nil {
			return
		}

		res, err := page.Context(ctx).Evaluate(rod.Eval(`
			() => {
				const buf = Array.isArray(window.__groupwireQueue) ? window.__groupwireQueue : [];
				window.__groupwireQueue = [];
				return buf;
			}
		`))
		if err != nil || res == nil || res.Value.Nil() {
			continue
		}
		raw, err := res.Value.MarshalJSON()
		if err != nil {
			continue
		}
		var batch []wireMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			continue
		}

		d.emitMu.Lock()
		emit := d.emit
		d.emitMu.Unlock()
		if emit == nil {
			continue
		}
		for _, wm := range batch {
			emit(wm.Group, RawMessage{
				SourceID:  wm.ID,
				Content:   wm.Content,
				Sender:    wm.Sender,
				Timestamp: time.UnixMilli(int64(wm.TS)).UTC(),
				IsMedia:   wm.IsMedia,
				MediaURL:  wm.MediaURL,
			})
		}
	}
}

func (d *rodDriver) currentPage() *rod.Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

func (d *rodDriver) poll(ctx context.Context, fn func() (bool, error)) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *rodDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher = nil
	}
	d.drainOnce = sync.Once{}
	return err
}
