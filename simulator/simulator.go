package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"uniconnect-chat/internal/middleware"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SimConfig struct {
	NumUsers          int
	RoomsPerUser      int
	SimulationTime    time.Duration
	MessageFrequency  float64 // messages/user/minute
	TypingProbability float64
	ReadProbability   float64
	DisconnectRate    float64
	ReconnectRate     float64
	ZipfS             float64
	EngineURL         string
	JWTSecret         string
}

type SimulationStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	RoomsCreated     int
	MessagesSent     int
	MessagesEchoed   int
	Notifications    int
	StatusUpdates    int
	ReadReceipts     int
	TypingEvents     int
	PresenceEvents   int
	ErrorFrames      int
	Reconnects       int
	RequestLatencies []time.Duration
	EchoLatencies    []time.Duration
}

// SimulationMetrics is a copy of the stats taken at the end of a run.
type SimulationMetrics struct {
	Duration         time.Duration
	TotalUsers       int
	ActiveUsers      int
	RoomsCreated     int
	TotalRequests    int64
	FailedRequests   int64
	MessagesSent     int
	MessagesEchoed   int
	Notifications    int
	StatusUpdates    int
	ReadReceipts     int
	TypingEvents     int
	PresenceEvents   int
	ErrorFrames      int
	Reconnects       int
	RequestLatencies []time.Duration
	EchoLatencies    []time.Duration
}

// Simulator drives synthetic identities against a running chat server
type Simulator struct {
	config SimConfig
	stats  *SimulationStats
	users  []*SimulatedUser
	client *http.Client
	auth   *middleware.Authenticator
	rng    *rand.Rand
	mu     sync.Mutex // guards rng
	log    *logrus.Logger
}

func NewSimulator(config SimConfig, log *logrus.Logger) *Simulator {
	if config.RoomsPerUser <= 0 {
		config.RoomsPerUser = 1
	}
	if config.ZipfS <= 1 {
		config.ZipfS = 1.07
	}
	return &Simulator{
		config: config,
		stats: &SimulationStats{
			StartTime: time.Now(),
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		auth: middleware.NewAuthenticator(config.JWTSecret, log),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		log:  log,
	}
}

func (s *Simulator) Run(ctx context.Context) error {
	s.log.Info("Starting chat simulation...")

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer s.disconnectAll()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SimulateActivities(ctx)
	}()

	// Simulate connection states
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()

	// Collect metrics
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	return nil
}

func (s *Simulator) initialize(ctx context.Context) error {
	// Phase 1: mint identities
	s.log.WithField("users", s.config.NumUsers).Info("Phase 1: Creating identities...")
	if s.config.NumUsers < 2 {
		return fmt.Errorf("need at least two users, got %d", s.config.NumUsers)
	}
	s.users = make([]*SimulatedUser, 0, s.config.NumUsers)
	for i := 0; i < s.config.NumUsers; i++ {
		user := newSimulatedUser(fmt.Sprintf("user_%d", i))
		token, err := s.auth.GenerateToken(user.ID, user.Name)
		if err != nil {
			return fmt.Errorf("failed to sign token for %s: %w", user.Name, err)
		}
		user.Token = token
		s.users = append(s.users, user)
	}

	// Phase 2: open conversations, partners drawn with Zipf so a few users are popular
	s.log.Info("Phase 2: Creating rooms...")
	if err := s.createRooms(ctx); err != nil {
		return err
	}

	// Phase 3: connect everybody
	s.log.Info("Phase 3: Connecting websocket sessions...")
	for _, user := range s.users {
		if err := s.connect(ctx, user); err != nil {
			s.log.WithError(err).WithField("user", user.Name).Warn("Failed to connect")
		}
	}

	s.log.Info("Initialization completed successfully")
	return nil
}

func (s *Simulator) createRooms(ctx context.Context) error {
	zipf := rand.NewZipf(s.rng, s.config.ZipfS, 1, uint64(len(s.users)-1))

	for i, user := range s.users {
		for n := 0; n < s.config.RoomsPerUser; n++ {
			j := int(zipf.Uint64())
			if j == i {
				j = (j + 1) % len(s.users)
			}
			other := s.users[j]

			resp, err := s.makeRequest(ctx, user, http.MethodPost, "/chat/room", map[string]string{
				"otherUserId": other.ID.String(),
			})
			if err != nil {
				s.log.WithError(err).WithField("user", user.Name).Warn("Failed to create room")
				continue
			}

			var room struct {
				ID uuid.UUID `json:"id"`
			}
			if err := json.Unmarshal(resp, &room); err != nil {
				return fmt.Errorf("failed to parse room response: %w", err)
			}
			if user.addRoom(room.ID) {
				s.stats.mu.Lock()
				s.stats.RoomsCreated++
				s.stats.mu.Unlock()
			}
			other.addRoom(room.ID)
		}
	}
	return nil
}

// Helper method to make authenticated HTTP requests
func (s *Simulator) makeRequest(ctx context.Context, user *SimulatedUser, method, endpoint string, data interface{}) ([]byte, error) {
	var body []byte
	var err error

	if data != nil {
		body, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+user.Token)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.recordRequestMetrics(start, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err = fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}
	s.recordRequestMetrics(start, err)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (s *Simulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	s.stats.TotalRequests++
	if err != nil {
		s.stats.FailedRequests++
		return
	}
	s.stats.SuccessRequests++
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, time.Since(start))
}

func (s *Simulator) wsURL(user *SimulatedUser) string {
	base := s.config.EngineURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws?token=" + user.Token
}

func (s *Simulator) simulateConnectivity(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, user := range s.users {
				connected := user.Connected()
				switch {
				case connected && s.chance(s.config.DisconnectRate):
					user.disconnect()
				case !connected && s.chance(s.config.ReconnectRate):
					if err := s.connect(ctx, user); err != nil {
						s.log.WithError(err).WithField("user", user.Name).Debug("Reconnect failed")
						continue
					}
					s.stats.mu.Lock()
					s.stats.Reconnects++
					s.stats.mu.Unlock()
				}
			}
		}
	}
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			s.log.WithFields(logrus.Fields{
				"active_users":    m.ActiveUsers,
				"messages_sent":   m.MessagesSent,
				"messages_echoed": m.MessagesEchoed,
				"notifications":   m.Notifications,
				"failed_requests": m.FailedRequests,
				"error_frames":    m.ErrorFrames,
			}).Info("Simulation progress")
		}
	}
}

func (s *Simulator) disconnectAll() {
	for _, user := range s.users {
		user.disconnect()
	}
}

func (s *Simulator) chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

func (s *Simulator) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// GetMetrics returns a snapshot of the run so far.
func (s *Simulator) GetMetrics() SimulationMetrics {
	active := 0
	for _, user := range s.users {
		if user.Connected() {
			active++
		}
	}

	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return SimulationMetrics{
		Duration:         time.Since(s.stats.StartTime),
		TotalUsers:       len(s.users),
		ActiveUsers:      active,
		RoomsCreated:     s.stats.RoomsCreated,
		TotalRequests:    s.stats.TotalRequests,
		FailedRequests:   s.stats.FailedRequests,
		MessagesSent:     s.stats.MessagesSent,
		MessagesEchoed:   s.stats.MessagesEchoed,
		Notifications:    s.stats.Notifications,
		StatusUpdates:    s.stats.StatusUpdates,
		ReadReceipts:     s.stats.ReadReceipts,
		TypingEvents:     s.stats.TypingEvents,
		PresenceEvents:   s.stats.PresenceEvents,
		ErrorFrames:      s.stats.ErrorFrames,
		Reconnects:       s.stats.Reconnects,
		RequestLatencies: append([]time.Duration(nil), s.stats.RequestLatencies...),
		EchoLatencies:    append([]time.Duration(nil), s.stats.EchoLatencies...),
	}
}
