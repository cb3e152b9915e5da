package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/emberhollow/sessiond/internal/engine"
	"github.com/emberhollow/sessiond/internal/model"
	"github.com/emberhollow/sessiond/internal/storage/memory"
)

// fakeLiveSession is a scripted in-engine player for tests
type fakeLiveSession struct {
	mu        sync.Mutex
	id        model.PlayerID
	name      string
	connected bool
	frozen    bool
	inventory []model.ItemStack
	health    float64
	applied   *model.SessionRecord
	toggles   map[string]bool
	messages  []string
	applyErr  error
}

var _ engine.LiveSession = (*fakeLiveSession)(nil)

func (s *fakeLiveSession) ID() model.PlayerID { return s.id }
func (s *fakeLiveSession) Name() string       { return s.name }

func (s *fakeLiveSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeLiveSession) SetFrozen(frozen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = frozen
}

func (s *fakeLiveSession) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

func (s *fakeLiveSession) CaptureInto(rec *model.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Inventory = append([]model.ItemStack(nil), s.inventory...)
	if s.health > 0 {
		rec.Health = s.health
	}
}

func (s *fakeLiveSession) Apply(rec *model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = rec.Clone()
	s.inventory = append([]model.ItemStack(nil), rec.Inventory...)
	s.health = rec.Health
	return nil
}

func (s *fakeLiveSession) ApplyToggle(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toggles == nil {
		s.toggles = map[string]bool{}
	}
	s.toggles[name] = enabled
}

func (s *fakeLiveSession) Message(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
}

func (s *fakeLiveSession) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func (s *fakeLiveSession) SetInventory(items ...model.ItemStack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = items
}

func (s *fakeLiveSession) Applied() *model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// fakeEngine is an in-memory engine binding for tests
type fakeEngine struct {
	mu            sync.Mutex
	sessions      map[model.PlayerID]*fakeLiveSession
	announcements []string
}

var _ engine.Engine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{sessions: make(map[model.PlayerID]*fakeLiveSession)}
}

func (e *fakeEngine) Connect(id model.PlayerID, name string) *fakeLiveSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &fakeLiveSession{id: id, name: name, connected: true}
	e.sessions[id] = s
	return s
}

func (e *fakeEngine) Disconnect(id model.PlayerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[id]; ok {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		delete(e.sessions, id)
	}
}

func (e *fakeEngine) Session(id model.PlayerID) (engine.LiveSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	return s, ok
}

func (e *fakeEngine) Population() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *fakeEngine) Announce(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.announcements = append(e.announcements, text)
}

func (e *fakeEngine) Announcements() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.announcements...)
}

// fakeDeath is a scripted Death subsystem
type fakeDeath struct {
	mu      sync.Mutex
	calls   []model.PlayerID
	release chan struct{} // when non-nil, the rejoin hook blocks until closed
	err     error
}

var _ engine.DeathSubsystem = (*fakeDeath)(nil)

func (d *fakeDeath) IsProcessingDeath(id model.PlayerID) bool { return false }

func (d *fakeDeath) HandleRespawnRejoin(ctx context.Context, id model.PlayerID) error {
	d.mu.Lock()
	d.calls = append(d.calls, id)
	release := d.release
	err := d.err
	d.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (d *fakeDeath) Calls() []model.PlayerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.PlayerID(nil), d.calls...)
}

// fakePunishment is a scripted Punishment subsystem
type fakePunishment struct {
	mu         sync.Mutex
	calls      []model.PlayerID
	release    chan struct{}
	loggingOut map[model.PlayerID]bool
	err        error
}

var _ engine.PunishmentSubsystem = (*fakePunishment)(nil)

func (p *fakePunishment) IsCombatLoggingOut(id model.PlayerID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loggingOut[id]
}

func (p *fakePunishment) HandleRejoin(ctx context.Context, id model.PlayerID) error {
	p.mu.Lock()
	p.calls = append(p.calls, id)
	release := p.release
	err := p.err
	p.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *fakePunishment) Calls() []model.PlayerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PlayerID(nil), p.calls...)
}

// faultyRepo wraps the memory repository with injectable faults
type faultyRepo struct {
	*memory.Repository
	mu         sync.Mutex
	failFinds  int
	failSaves  int
	saves      int
	notReady   bool
	blockFinds chan struct{} // when non-nil, FindSession waits until closed
}

func newFaultyRepo() *faultyRepo {
	return &faultyRepo{Repository: memory.New()}
}

func (r *faultyRepo) FindSession(ctx context.Context, id model.PlayerID) (*model.SessionRecord, error) {
	r.mu.Lock()
	block := r.blockFinds
	if r.failFinds > 0 {
		r.failFinds--
		r.mu.Unlock()
		return nil, errors.New("injected find failure")
	}
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.Repository.FindSession(ctx, id)
}

func (r *faultyRepo) SaveSession(ctx context.Context, rec *model.SessionRecord) error {
	r.mu.Lock()
	r.saves++
	if r.failSaves > 0 {
		r.failSaves--
		r.mu.Unlock()
		return errors.New("injected save failure")
	}
	r.mu.Unlock()
	return r.Repository.SaveSession(ctx, rec)
}

func (r *faultyRepo) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.notReady
}

func (r *faultyRepo) FailNextFinds(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFinds = n
}

func (r *faultyRepo) FailNextSaves(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSaves = n
}

func (r *faultyRepo) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
