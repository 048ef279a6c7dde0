package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/domain/events"
	"github.com/cirm-data/portal/modules/funding/infrastructure/persistence"
	"github.com/cirm-data/portal/modules/funding/services"
	"github.com/cirm-data/portal/pkg/application"
	"github.com/cirm-data/portal/pkg/constants"
	"github.com/cirm-data/portal/pkg/eventbus"
)

type fakeHub struct {
	frames [][]byte
	hooks  []application.WsCallback
}

func (f *fakeHub) ServeHTTP(http.ResponseWriter, *http.Request) {}

func (f *fakeHub) OnConnect(cb application.WsCallback) {
	f.hooks = append(f.hooks, cb)
}

func (f *fakeHub) Broadcast(channel string, message []byte) {
	f.frames = append(f.frames, message)
}

type fakeConn struct {
	sent [][]byte
}

func (c *fakeConn) SendMessage(m []byte) error {
	c.sent = append(c.sent, m)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testCtx() context.Context {
	return context.WithValue(context.Background(), constants.LoggerKey, logrus.NewEntry(testLogger()))
}

func testStore(t *testing.T, withData bool) *services.DataStore {
	t.Helper()
	store := services.NewDataStore(
		persistence.NewMemoryDatasetRepository(),
		persistence.NewMemoryChangeLogRepository(),
		eventbus.NewEventPublisher(testLogger()),
	)
	if withData {
		data := &cirm.Data{
			UpdateDate: "2025-02-02T00:00:00Z",
			ActiveGrants: []cirm.ActiveGrant{
				{
					GrantNumber: "DISC1-00001", ProgramType: "Discovery", GrantType: "DISC1",
					GrantTitle: "Organoid models", AwardValue: 100000, AwardStatus: cirm.StatusActive,
				},
			},
		}
		data.Normalize()
		cirm.Recompute(data)
		require.NoError(t, store.Set(testCtx(), data, nil, events.SourceImport))
	}
	return store
}

func TestOnDataReplaced_BroadcastsFrame(t *testing.T) {
	t.Parallel()

	hub := &fakeHub{}
	h := &DatasetReplacedHandler{hub: hub, store: testStore(t, false)}

	h.onDataReplaced(&events.DataReplacedV1{
		Source:     events.SourceImport,
		ChangeID:   "1712000000000-aaaa0000",
		UpdateDate: "2025-02-02T00:00:00Z",
		Summary:    cirm.Summary{TotalGrants: 3},
	})

	require.Len(t, hub.frames, 1)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(hub.frames[0], &frame))
	require.Equal(t, "dataset.replaced", frame["event"])
	require.Equal(t, events.SourceImport, frame["source"])
	require.Equal(t, "1712000000000-aaaa0000", frame["changeId"])
	require.Equal(t, "2025-02-02T00:00:00Z", frame["updateDate"])
}

func TestOnDataReplaced_IgnoresNilEvent(t *testing.T) {
	t.Parallel()

	hub := &fakeHub{}
	h := &DatasetReplacedHandler{hub: hub, store: testStore(t, false)}
	h.onDataReplaced(nil)
	require.Empty(t, hub.frames)
}

func TestSendSnapshot_GreetsNewConnection(t *testing.T) {
	t.Parallel()

	h := &DatasetReplacedHandler{hub: &fakeHub{}, store: testStore(t, true)}
	conn := &fakeConn{}

	require.NoError(t, h.sendSnapshot(testCtx(), conn))
	require.Len(t, conn.sent, 1)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(conn.sent[0], &frame))
	require.Equal(t, "dataset.snapshot", frame["event"])
	require.Equal(t, "2025-02-02T00:00:00Z", frame["updateDate"])
	require.NotContains(t, frame, "source")
}

func TestSendSnapshot_EmptyStoreSendsNothing(t *testing.T) {
	t.Parallel()

	h := &DatasetReplacedHandler{hub: &fakeHub{}, store: testStore(t, false)}
	conn := &fakeConn{}

	require.NoError(t, h.sendSnapshot(testCtx(), conn))
	require.Empty(t, conn.sent)
}
