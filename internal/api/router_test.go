package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/emberhollow/sessiond/internal/coordinator"
	"github.com/emberhollow/sessiond/internal/dependencies/clock"
	"github.com/emberhollow/sessiond/internal/dependencies/random"
	"github.com/emberhollow/sessiond/internal/engine"
	"github.com/emberhollow/sessiond/internal/model"
	"github.com/emberhollow/sessiond/internal/storage/memory"
	"github.com/emberhollow/sessiond/internal/testutil"
)

type RouterSuite struct {
	suite.Suite
	repo   *memory.Repository
	eng    *stubEngine
	coord  *coordinator.Coordinator
	server *httptest.Server
}

// stubSession is a minimal connected player for driving loads in tests
type stubSession struct {
	id   model.PlayerID
	name string
}

func (s *stubSession) ID() model.PlayerID               { return s.id }
func (s *stubSession) Name() string                     { return s.name }
func (s *stubSession) Connected() bool                  { return true }
func (s *stubSession) SetFrozen(bool)                   {}
func (s *stubSession) CaptureInto(*model.SessionRecord) {}
func (s *stubSession) Apply(*model.SessionRecord) error { return nil }
func (s *stubSession) ApplyToggle(string, bool)         {}
func (s *stubSession) Message(string)                   {}

type stubEngine struct {
	mu       sync.Mutex
	sessions map[model.PlayerID]*stubSession
}

func (e *stubEngine) Session(id model.PlayerID) (engine.LiveSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	return s, ok
}

func (e *stubEngine) Population() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *stubEngine) Announce(string) {}

func (e *stubEngine) add(id model.PlayerID, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[id] = &stubSession{id: id, name: name}
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.repo = memory.New()

	s.eng = &stubEngine{sessions: make(map[model.PlayerID]*stubSession)}
	s.coord = coordinator.New(coordinator.Deps{
		Repository: s.repo,
		Engine:     s.eng,
		Death:      engine.NopDeathSubsystem{},
		Punishment: engine.NopPunishmentSubsystem{},
		Ranks:      engine.NewMapRankRegistry(),
		Tags:       engine.NewMapTagRegistry(),
		Scheduler:  engine.ImmediateScheduler{},
		Clock:      clock.New(),
		Random:     random.New(),
		Logger:     logger,
	}, coordinator.DefaultConfig())

	router := NewRouter(RouterConfig{
		Logger:      logger,
		Coordinator: s.coord,
		Repository:  s.repo,
	})
	s.server = httptest.NewServer(router)
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) get(path string) (*http.Response, map[string]any) {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var body map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func (s *RouterSuite) TestHealth() {
	resp, body := s.get("/api/health")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["status"])
	s.Equal(true, body["repository_ready"])
}

func (s *RouterSuite) TestDumpEmpty() {
	resp, body := s.get("/api/diag/dump")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Empty(body["players"])
	s.Contains(body, "counters")
}

func (s *RouterSuite) TestDumpWithConnectedPlayer() {
	id := s.connectPlayer("alyx")

	resp, body := s.get("/api/diag/dump")
	s.Equal(http.StatusOK, resp.StatusCode)

	players, ok := body["players"].([]any)
	s.Require().True(ok)
	s.Require().Len(players, 1)
	player := players[0].(map[string]any)
	s.Equal(id.String(), player["id"])
	s.Equal(string(model.StateReady), player["state"])

	counters := body["counters"].(map[string]any)
	s.Equal(float64(1), counters["loads_succeeded"])
}

func (s *RouterSuite) TestPlayerDiagnostics() {
	id := s.connectPlayer("alyx")

	resp, body := s.get("/api/diag/player/" + id.String())
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(id.String(), body["id"])
	s.Equal(string(model.StateReady), body["state"])
}

func (s *RouterSuite) TestPlayerDiagnosticsOffline() {
	resp, body := s.get("/api/diag/player/" + model.NewPlayerID().String())
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Contains(body, "error")
}

func (s *RouterSuite) TestPlayerDiagnosticsInvalidID() {
	resp, body := s.get("/api/diag/player/not-a-uuid")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(body, "error")
}

// connectPlayer drives a load to completion through the coordinator
func (s *RouterSuite) connectPlayer(name string) model.PlayerID {
	id := model.NewPlayerID()
	s.eng.add(id, name)
	s.coord.HandleConnect(id, name)
	s.Require().Eventually(func() bool {
		return s.coord.IsPlayerReady(id)
	}, 2*time.Second, 5*time.Millisecond)
	return id
}
