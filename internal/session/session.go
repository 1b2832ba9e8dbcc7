package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pdfqa/internal/chromemdb"
	"pdfqa/internal/helper"
	"pdfqa/internal/llmservice"
	"pdfqa/internal/models"
	"pdfqa/internal/rag"
)

const maxHistory = 50

// Session is the state of one browser session. Handlers hold its lock for
// the whole request so interactions within a session never overlap.
type Session struct {
	ID string

	mu sync.Mutex

	DocumentHash string
	DocumentName string
	Chunks       int

	Index    *chromemdb.Index
	LLM      llmservice.ChatModel
	Pipeline *rag.Pipeline

	LastQuestion string
	LastAnswer   string
	History      []models.Turn
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// HasDocument reports whether a document has been indexed.
func (s *Session) HasDocument() bool {
	return s.Pipeline != nil
}

// SameDocument reports whether hash identifies the indexed document.
func (s *Session) SameDocument(hash string) bool {
	return s.HasDocument() && s.DocumentHash == hash
}

// SetDocument replaces the indexed document. The previous index, pipeline
// and conversation are dropped.
func (s *Session) SetDocument(hash, name string, chunks int, index *chromemdb.Index, llm llmservice.ChatModel, pipeline *rag.Pipeline) {
	s.DocumentHash = hash
	s.DocumentName = name
	s.Chunks = chunks
	s.Index = index
	s.LLM = llm
	s.Pipeline = pipeline
	s.LastQuestion = ""
	s.LastAnswer = ""
	s.History = nil
}

// Record appends a finished exchange.
func (s *Session) Record(turn models.Turn) {
	s.LastQuestion = turn.Question
	s.LastAnswer = turn.Answer
	s.History = append(s.History, turn)
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}

// RecentHistory returns up to the last n turns, oldest first.
func (s *Session) RecentHistory(n int) []models.Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	out := make([]models.Turn, n)
	copy(out, s.History[len(s.History)-n:])
	return out
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Store keeps sessions in memory and evicts them after ttl of inactivity.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, creating a new one with a fresh
// id when id is unknown. created reports whether a new session was made.
func (st *Store) GetOrCreate(id string) (s *Session, created bool, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if e, ok := st.sessions[id]; ok {
		e.lastSeen = st.now()
		return e.session, false, nil
	}

	newID, err := helper.GenerateUUID()
	if err != nil {
		return nil, false, err
	}
	s = &Session{ID: newID}
	st.sessions[newID] = &entry{session: s, lastSeen: st.now()}
	return s, true, nil
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than ttl and returns how many.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-st.ttl)
	removed := 0
	for id, e := range st.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Int("remaining", st.Len()).Msg("Evicted idle sessions")
			}
		}
	}
}
