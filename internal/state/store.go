package state

import (
	"sync"

	"go.uber.org/zap"
)

// Listener получает снимок состояния после каждого применённого события.
type Listener func(State)

// Store является единственным владельцем состояния клиента. События применяются
// последовательно в порядке вызова Dispatch.
type Store struct {
	mu        sync.Mutex
	state     State
	seq       uint64
	listeners map[uint64]Listener
	nextID    uint64
	logger    *zap.Logger
}

// NewStore создаёт хранилище с начальным состоянием.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		listeners: make(map[uint64]Listener),
		logger:    logger,
	}
}

// State возвращает снимок текущего состояния.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch применяет событие и уведомляет подписчиков.
func (s *Store) Dispatch(e Event) {
	s.mu.Lock()
	snapshot, listeners, applied := s.applyLocked(e)
	s.mu.Unlock()

	if applied {
		notify(listeners, snapshot)
	}
}

// Begin переводит операцию в состояние pending и возвращает номер запроса.
func (s *Store) Begin(op Op) uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	snapshot, listeners, _ := s.applyLocked(Event{Op: op, Phase: PhasePending, Seq: seq})
	s.mu.Unlock()

	notify(listeners, snapshot)
	return seq
}

func (s *Store) applyLocked(e Event) (State, []Listener, bool) {
	if e.Phase.terminal() {
		if lc, ok := s.state.Lifecycle(e.Op); ok && lc.seq != e.Seq {
			s.logger.Debug("discarding stale response",
				zap.String("op", string(e.Op)),
				zap.Uint64("seq", e.Seq),
				zap.Uint64("current", lc.seq))
			return s.state, nil, false
		}
	}

	s.state = Reduce(s.state, e)

	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return s.state, listeners, true
}

func notify(listeners []Listener, snapshot State) {
	for _, l := range listeners {
		l(snapshot)
	}
}

// Fulfill завершает запрос успешно.
func (s *Store) Fulfill(op Op, seq uint64, payload any) {
	s.Dispatch(Event{Op: op, Phase: PhaseFulfilled, Seq: seq, Payload: payload})
}

// Reject завершает запрос с ошибкой.
func (s *Store) Reject(op Op, seq uint64, msg string) {
	s.Dispatch(Event{Op: op, Phase: PhaseRejected, Seq: seq, Err: msg})
}

// Cancel делает текущий запрос операции устаревшим: его результат будет отброшен.
func (s *Store) Cancel(op Op) {
	s.mu.Lock()
	s.seq++
	snapshot, listeners, _ := s.applyLocked(Event{Op: op, Phase: PhaseCancelled, Seq: s.seq})
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// Reset сбрасывает флаги ошибки и успеха операции.
func (s *Store) Reset(op Op) {
	s.Dispatch(Event{Op: op, Phase: PhaseReset})
}

// Current сообщает, является ли seq текущим запросом операции.
func (s *Store) Current(op Op, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	lc, ok := s.state.Lifecycle(op)
	return ok && lc.seq == seq
}

// Subscribe регистрирует подписчика и возвращает функцию отписки.
// Подписчик вызывается вне блокировки и может читать состояние.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
