package application

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/cirm-data/portal/pkg/composables"
	"github.com/cirm-data/portal/pkg/constants"
	"github.com/cirm-data/portal/pkg/intl"
	"github.com/cirm-data/portal/pkg/ws"
)

const (
	// ChannelDatasets receives a frame on every wholesale dataset replace.
	ChannelDatasets string = "datasets"
)

type HuberOptions struct {
	Pool        *pgxpool.Pool
	Bundle      *i18n.Bundle
	Logger      *logrus.Logger
	CheckOrigin func(r *http.Request) bool
}

type Connection interface {
	ws.Connectioner
}

type WsCallback func(ctx context.Context, conn Connection) error

type Huber interface {
	http.Handler
	// OnConnect hooks run for every accepted connection. A hook error closes
	// the socket. Hooks must be registered at module load, before the server
	// accepts connections.
	OnConnect(f WsCallback)
	Broadcast(channel string, message []byte)
}

func NewHub(opts *HuberOptions) Huber {
	appHub := &huber{
		bundle: opts.Bundle,
		pool:   opts.Pool,
		logger: opts.Logger,
	}
	hub := ws.NewHub(&ws.HubOptions{
		Logger:      opts.Logger,
		CheckOrigin: opts.CheckOrigin,
		OnConnect:   appHub.onConnect,
	})
	appHub.hub = hub
	return appHub
}

type huber struct {
	hub    ws.Huber
	bundle *i18n.Bundle
	pool   *pgxpool.Pool
	logger *logrus.Logger
	hooks  []WsCallback
}

func (h *huber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeHTTP(w, r)
}

// All connections are anonymous data subscribers, so every socket joins the
// datasets channel on connect before the registered hooks run.
func (h *huber) onConnect(_ *http.Request, hub *ws.Hub, conn *ws.Connection) error {
	hub.JoinChannel(ChannelDatasets, conn)

	ctx := h.buildContext()
	for _, hook := range h.hooks {
		if err := hook(ctx, conn); err != nil {
			return err
		}
	}
	return nil
}

func (h *huber) OnConnect(f WsCallback) {
	h.hooks = append(h.hooks, f)
}

func (h *huber) buildContext() context.Context {
	ctx := context.WithValue(
		context.Background(),
		constants.LoggerKey,
		logrus.NewEntry(h.logger),
	)
	if h.pool != nil {
		ctx = composables.WithPool(ctx, h.pool)
	}
	if h.bundle != nil {
		locale := language.English
		ctx = intl.WithLocalizer(ctx, i18n.NewLocalizer(h.bundle, locale.String()))
		ctx = intl.WithLocale(ctx, locale)
	}
	return ctx
}

func (h *huber) Broadcast(channel string, message []byte) {
	h.hub.BroadcastToChannel(channel, message)
}
