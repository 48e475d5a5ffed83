package simulator

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"uniconnect-chat/internal/chat"
	"uniconnect-chat/internal/database"
	"uniconnect-chat/internal/engine"
	"uniconnect-chat/internal/handlers"
	"uniconnect-chat/internal/middleware"
	"uniconnect-chat/internal/notify"
	"uniconnect-chat/internal/utils"
	"uniconnect-chat/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "simulator-secret"

func startServer(t *testing.T) string {
	t.Helper()
	log := utils.NewDiscardLogger()
	metrics := utils.NewMetricsCollector()

	eng := engine.NewEngine(actor.NewActorSystem(), database.NewMemoryStore(), metrics, log, engine.Options{})
	t.Cleanup(eng.Stop)
	hub := websocket.NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fanout := notify.NewFanout(eng, hub, log, 64, time.Second)
	go fanout.Run(ctx)

	service := chat.NewService(eng, hub, fanout, metrics, log)
	auth := middleware.NewAuthenticator(testSecret, log)
	server := handlers.NewServer(eng, hub, service, auth, middleware.DefaultCORSConfig(nil), metrics, database.StoreMemory, log)

	srv := httptest.NewServer(server.Routes())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSimulationExchangesMessages(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a live server for a couple of seconds")
	}
	url := startServer(t)

	sim := NewSimulator(SimConfig{
		NumUsers:          4,
		RoomsPerUser:      2,
		SimulationTime:    2 * time.Second,
		MessageFrequency:  300,
		TypingProbability: 0.5,
		ReadProbability:   0.5,
		ZipfS:             1.5,
		EngineURL:         url,
		JWTSecret:         testSecret,
	}, utils.NewDiscardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sim.Run(ctx))

	m := sim.GetMetrics()
	assert.Equal(t, 4, m.TotalUsers)
	assert.Positive(t, m.RoomsCreated)
	assert.Zero(t, m.FailedRequests)
	assert.Positive(t, m.MessagesSent)
	assert.Positive(t, m.MessagesEchoed)
	assert.Zero(t, m.ErrorFrames)

	var out bytes.Buffer
	PrintReport(&out, m)
	assert.Contains(t, out.String(), "Messages sent")
	assert.Contains(t, out.String(), "Send to echo")
}

func TestSimulationNeedsTwoUsers(t *testing.T) {
	sim := NewSimulator(SimConfig{NumUsers: 1, JWTSecret: testSecret}, utils.NewDiscardLogger())
	assert.Error(t, sim.Run(context.Background()))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, LatencySummary{}, summarize(nil))

	samples := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	sum := summarize(samples)
	assert.Equal(t, 100, sum.Count)
	assert.Equal(t, 50*time.Millisecond, sum.P50)
	assert.Equal(t, 95*time.Millisecond, sum.P95)
	assert.Equal(t, 99*time.Millisecond, sum.P99)
	assert.Equal(t, 100*time.Millisecond, sum.Max)
	assert.Equal(t, 100*time.Millisecond, samples[0], "input is left untouched")
}
