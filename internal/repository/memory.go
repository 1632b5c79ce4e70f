package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stakehouse/platform/internal/domain"
)

// MemoryStore is an in-process implementation of every repository interface
// plus TxRunner, used by unit tests and local development. One mutex
// serializes all units of work, which trivially satisfies the per-session and
// per-player atomicity the Postgres implementation gets from row locks.
type MemoryStore struct {
	mu sync.Mutex
	st memState
}

type memState struct {
	players     map[uuid.UUID]domain.Player
	games       map[string]domain.Game
	sessions    map[uuid.UUID]domain.Session
	entries     []domain.LedgerEntry
	treasury    domain.Treasury
	randomness  map[string]domain.RandomnessRequest
	commitments map[string]domain.ChoiceCommitment
	outbox      []domain.OutboxRow
	outboxSeq   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: memState{
		players:     make(map[uuid.UUID]domain.Player),
		games:       make(map[string]domain.Game),
		sessions:    make(map[uuid.UUID]domain.Session),
		randomness:  make(map[string]domain.RandomnessRequest),
		commitments: make(map[string]domain.ChoiceCommitment),
	}}
}

// WithinTx serializes fn under the store mutex. On error the pre-call snapshot
// is restored, matching transactional rollback semantics.
func (m *MemoryStore) WithinTx(_ context.Context, fn func(db DBTX) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(nil); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (s memState) clone() memState {
	out := memState{
		players:     make(map[uuid.UUID]domain.Player, len(s.players)),
		games:       make(map[string]domain.Game, len(s.games)),
		sessions:    make(map[uuid.UUID]domain.Session, len(s.sessions)),
		randomness:  make(map[string]domain.RandomnessRequest, len(s.randomness)),
		commitments: make(map[string]domain.ChoiceCommitment, len(s.commitments)),
		entries:     append([]domain.LedgerEntry(nil), s.entries...),
		outbox:      append([]domain.OutboxRow(nil), s.outbox...),
		treasury:    s.treasury,
		outboxSeq:   s.outboxSeq,
	}
	for k, v := range s.players {
		out.players[k] = v
	}
	for k, v := range s.games {
		out.games[k] = v
	}
	for k, v := range s.sessions {
		out.sessions[k] = v
	}
	for k, v := range s.randomness {
		out.randomness[k] = v
	}
	for k, v := range s.commitments {
		out.commitments[k] = v
	}
	return out
}

// --- PlayerRepository ---

func (m *MemoryStore) FindByID(_ context.Context, _ DBTX, id uuid.UUID) (*domain.Player, error) {
	p, ok := m.st.players[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) LockForUpdate(_ context.Context, _ DBTX, id uuid.UUID) (*domain.Player, error) {
	return m.FindByID(nil, nil, id)
}

func (m *MemoryStore) Create(_ context.Context, _ DBTX, player *domain.Player) error {
	m.st.players[player.ID] = *player
	return nil
}

func (m *MemoryStore) UpdateBalances(_ context.Context, _ DBTX, playerID uuid.UUID, delta domain.BalanceUpdate) (*domain.Player, error) {
	p, ok := m.st.players[playerID]
	if !ok {
		return nil, nil
	}
	p.Balance += delta.Balance
	p.PayoutBalance += delta.PayoutBalance
	p.UpdatedAt = time.Now()
	m.st.players[playerID] = p
	return &p, nil
}

// Players exposes the store as a PlayerRepository.
func (m *MemoryStore) Players() PlayerRepository { return m }

// --- GameRepository ---

type memGames struct{ m *MemoryStore }

// Games exposes the store as a GameRepository.
func (m *MemoryStore) Games() GameRepository { return memGames{m} }

func (g memGames) FindByID(_ context.Context, _ DBTX, id string) (*domain.Game, error) {
	game, ok := g.m.st.games[id]
	if !ok {
		return nil, nil
	}
	return &game, nil
}

func (g memGames) LockForUpdate(ctx context.Context, db DBTX, id string) (*domain.Game, error) {
	return g.FindByID(ctx, db, id)
}

func (g memGames) Create(_ context.Context, _ DBTX, game *domain.Game) error {
	g.m.st.games[game.ID] = *game
	return nil
}

func (g memGames) Update(_ context.Context, _ DBTX, game *domain.Game) error {
	if _, ok := g.m.st.games[game.ID]; !ok {
		return domain.ErrNotFound("game", game.ID)
	}
	game.UpdatedAt = time.Now()
	g.m.st.games[game.ID] = *game
	return nil
}

func (g memGames) List(_ context.Context, _ DBTX) ([]domain.Game, error) {
	out := make([]domain.Game, 0, len(g.m.st.games))
	for _, game := range g.m.st.games {
		out = append(out, game)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- SessionRepository ---

type memSessions struct{ m *MemoryStore }

// Sessions exposes the store as a SessionRepository.
func (m *MemoryStore) Sessions() SessionRepository { return memSessions{m} }

func (s memSessions) FindByID(_ context.Context, _ DBTX, id uuid.UUID) (*domain.Session, error) {
	sess, ok := s.m.st.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s memSessions) LockForUpdate(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error) {
	return s.FindByID(ctx, db, id)
}

func (s memSessions) Create(_ context.Context, _ DBTX, sess *domain.Session) error {
	s.m.st.sessions[sess.ID] = *sess
	return nil
}

func (s memSessions) Update(_ context.Context, _ DBTX, sess *domain.Session) error {
	if _, ok := s.m.st.sessions[sess.ID]; !ok {
		return domain.ErrNotFound("session", sess.ID.String())
	}
	s.m.st.sessions[sess.ID] = *sess
	return nil
}

func (s memSessions) SumOpenPools(_ context.Context, _ DBTX) (int64, error) {
	var sum int64
	for _, sess := range s.m.st.sessions {
		if sess.State == domain.SessionOpen {
			sum += sess.RemainingPool
		}
	}
	return sum, nil
}

// --- EntryRepository ---

type memEntries struct{ m *MemoryStore }

// Entries exposes the store as an EntryRepository.
func (m *MemoryStore) Entries() EntryRepository { return memEntries{m} }

func (e memEntries) Insert(_ context.Context, _ DBTX, params domain.PostLedgerEntryParams, balanceAfter, payoutAfter int64) (*domain.LedgerEntry, error) {
	entry := domain.LedgerEntry{
		ID:                 uuid.New(),
		PlayerID:           params.PlayerID,
		SessionID:          params.SessionID,
		Type:               params.Type,
		Amount:             params.Amount,
		BalanceAfter:       balanceAfter,
		PayoutBalanceAfter: payoutAfter,
		ExternalRef:        params.ExternalRef,
		Metadata:           params.Metadata,
		CreatedAt:          time.Now(),
	}
	e.m.st.entries = append(e.m.st.entries, entry)
	return &entry, nil
}

func (e memEntries) FindByExternalRef(_ context.Context, _ DBTX, playerID uuid.UUID, entryType domain.EntryType, externalRef string) (*domain.LedgerEntry, error) {
	for i := range e.m.st.entries {
		entry := e.m.st.entries[i]
		if entry.PlayerID == playerID && entry.Type == entryType &&
			entry.ExternalRef != nil && *entry.ExternalRef == externalRef {
			return &entry, nil
		}
	}
	return nil, nil
}

func (e memEntries) ListByPlayer(_ context.Context, _ DBTX, playerID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []domain.LedgerEntry
	for i := len(e.m.st.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if e.m.st.entries[i].PlayerID == playerID {
			out = append(out, e.m.st.entries[i])
		}
	}
	return out, nil
}

func (e memEntries) ListBySession(_ context.Context, _ DBTX, sessionID uuid.UUID) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, entry := range e.m.st.entries {
		if entry.SessionID != nil && *entry.SessionID == sessionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// --- TreasuryRepository ---

type memTreasury struct{ m *MemoryStore }

// Treasury exposes the store as a TreasuryRepository.
func (m *MemoryStore) Treasury() TreasuryRepository { return memTreasury{m} }

func (t memTreasury) Get(_ context.Context, _ DBTX) (*domain.Treasury, error) {
	tr := t.m.st.treasury
	return &tr, nil
}

func (t memTreasury) Apply(_ context.Context, _ DBTX, delta domain.TreasuryUpdate) (*domain.Treasury, error) {
	t.m.st.treasury.RakeAccrued += delta.Rake
	t.m.st.treasury.BurnAccrued += delta.Burn
	t.m.st.treasury.UpdatedAt = time.Now()
	tr := t.m.st.treasury
	return &tr, nil
}

// --- RandomnessRepository ---

type memRandomness struct{ m *MemoryStore }

// Randomness exposes the store as a RandomnessRepository.
func (m *MemoryStore) Randomness() RandomnessRepository { return memRandomness{m} }

func (r memRandomness) FindByPurpose(_ context.Context, _ DBTX, purposeID string) (*domain.RandomnessRequest, error) {
	req, ok := r.m.st.randomness[purposeID]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r memRandomness) LockByPurpose(ctx context.Context, db DBTX, purposeID string) (*domain.RandomnessRequest, error) {
	return r.FindByPurpose(ctx, db, purposeID)
}

func (r memRandomness) Create(_ context.Context, _ DBTX, req *domain.RandomnessRequest) error {
	r.m.st.randomness[req.PurposeID] = *req
	return nil
}

func (r memRandomness) Update(_ context.Context, _ DBTX, req *domain.RandomnessRequest) error {
	if _, ok := r.m.st.randomness[req.PurposeID]; !ok {
		return domain.ErrNotFound("randomness request", req.PurposeID)
	}
	r.m.st.randomness[req.PurposeID] = *req
	return nil
}

// --- CommitmentRepository ---

type memCommitments struct{ m *MemoryStore }

// Commitments exposes the store as a CommitmentRepository.
func (m *MemoryStore) Commitments() CommitmentRepository { return memCommitments{m} }

func commitKey(sessionID, playerID string) string { return sessionID + "/" + playerID }

func (c memCommitments) Find(_ context.Context, _ DBTX, sessionID, playerID string) (*domain.ChoiceCommitment, error) {
	cm, ok := c.m.st.commitments[commitKey(sessionID, playerID)]
	if !ok {
		return nil, nil
	}
	return &cm, nil
}

func (c memCommitments) LockForUpdate(ctx context.Context, db DBTX, sessionID, playerID string) (*domain.ChoiceCommitment, error) {
	return c.Find(ctx, db, sessionID, playerID)
}

func (c memCommitments) Create(_ context.Context, _ DBTX, cm *domain.ChoiceCommitment) error {
	c.m.st.commitments[commitKey(cm.SessionID, cm.PlayerID)] = *cm
	return nil
}

func (c memCommitments) Update(_ context.Context, _ DBTX, cm *domain.ChoiceCommitment) error {
	key := commitKey(cm.SessionID, cm.PlayerID)
	if _, ok := c.m.st.commitments[key]; !ok {
		return domain.ErrNotFound("choice commitment", cm.SessionID)
	}
	c.m.st.commitments[key] = *cm
	return nil
}

// --- OutboxRepository ---

type memOutbox struct{ m *MemoryStore }

// Outbox exposes the store as an OutboxRepository.
func (m *MemoryStore) Outbox() OutboxRepository { return memOutbox{m} }

func (o memOutbox) Insert(_ context.Context, _ DBTX, draft domain.OutboxDraft) error {
	o.m.st.outboxSeq++
	o.m.st.outbox = append(o.m.st.outbox, domain.OutboxRow{SeqID: o.m.st.outboxSeq, OutboxDraft: draft})
	return nil
}

func (o memOutbox) FetchUnpublishedRows(_ context.Context, _ DBTX, limit int) ([]domain.OutboxRow, error) {
	if limit > len(o.m.st.outbox) {
		limit = len(o.m.st.outbox)
	}
	return append([]domain.OutboxRow(nil), o.m.st.outbox[:limit]...), nil
}

func (o memOutbox) MarkPublished(_ context.Context, _ DBTX, ids []int64) error {
	drained := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drained[id] = true
	}
	kept := o.m.st.outbox[:0]
	for _, row := range o.m.st.outbox {
		if !drained[row.SeqID] {
			kept = append(kept, row)
		}
	}
	o.m.st.outbox = kept
	return nil
}
