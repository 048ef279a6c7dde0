package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/domain/events"
	"github.com/cirm-data/portal/modules/funding/services"
	"github.com/cirm-data/portal/pkg/application"
)

// datasetReplacedFrame is the wire shape pushed to websocket subscribers on
// every committed data set replacement. The same shape, under the snapshot
// event name, greets new connections with the current state.
type datasetReplacedFrame struct {
	Event      string       `json:"event"`
	Source     string       `json:"source,omitempty"`
	ChangeID   string       `json:"changeId,omitempty"`
	UpdateDate string       `json:"updateDate"`
	Summary    cirm.Summary `json:"summary"`
}

type DatasetReplacedHandler struct {
	hub   application.Huber
	store *services.DataStore
}

func RegisterDatasetReplacedHandlers(app application.Application) {
	hub := app.Websocket()
	if hub == nil {
		return
	}
	handler := &DatasetReplacedHandler{
		hub:   hub,
		store: app.Service(services.DataStore{}).(*services.DataStore),
	}
	app.EventPublisher().Subscribe(handler.onDataReplaced)
	hub.OnConnect(handler.sendSnapshot)
}

func (h *DatasetReplacedHandler) onDataReplaced(ev *events.DataReplacedV1) {
	if h == nil || h.hub == nil || ev == nil {
		return
	}
	frame, err := json.Marshal(&datasetReplacedFrame{
		Event:      "dataset.replaced",
		Source:     ev.Source,
		ChangeID:   ev.ChangeID,
		UpdateDate: ev.UpdateDate,
		Summary:    ev.Summary,
	})
	if err != nil {
		return
	}
	h.hub.Broadcast(application.ChannelDatasets, frame)
}

// sendSnapshot hands a freshly connected subscriber the current summary, so
// late joiners do not wait for the next replacement to learn the state.
func (h *DatasetReplacedHandler) sendSnapshot(ctx context.Context, conn application.Connection) error {
	data, err := h.store.Get(ctx)
	if err != nil {
		if errors.Is(err, cirm.ErrNoDataSet) {
			return nil
		}
		return err
	}
	frame, err := json.Marshal(&datasetReplacedFrame{
		Event:      "dataset.snapshot",
		UpdateDate: data.UpdateDate,
		Summary:    data.Summary,
	})
	if err != nil {
		return err
	}
	return conn.SendMessage(frame)
}
