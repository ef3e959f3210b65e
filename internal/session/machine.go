package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Puzzle-bot/internal/board"
	"github.com/park285/Cheese-Puzzle-bot/internal/domain"
	"github.com/park285/Cheese-Puzzle-bot/internal/puzzle"
)

// Recorder receives every session that ended after a puzzle was started.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt *domain.PuzzleAttempt) error
}

// Machine applies chat commands to channel sessions. Commands on the same channel run
// one at a time; different channels never share state.
type Machine struct {
	store    Store
	source   puzzle.Source
	locker   Locker
	format   Formatter
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
	lockWait time.Duration
}

type Option func(*Machine)

func WithLocker(l Locker) Option       { return func(m *Machine) { m.locker = l } }
func WithFormatter(f Formatter) Option { return func(m *Machine) { m.format = f } }
func WithRecorder(r Recorder) Option   { return func(m *Machine) { m.recorder = r } }
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithLockWait bounds how long a command waits for the channel lock.
func WithLockWait(d time.Duration) Option {
	return func(m *Machine) { m.lockWait = d }
}

func NewMachine(store Store, source puzzle.Source, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		source:   source,
		locker:   NewLocalLocker(),
		format:   PlainFormatter{},
		logger:   zap.NewNop(),
		now:      time.Now,
		lockWait: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle runs one inbound chat text for channel and returns the reply to send.
// The store is updated before Handle returns, so the next command on the channel sees
// the result of this one.
func (m *Machine) Handle(ctx context.Context, channel, text string) Reply {
	cmd := Classify(text)

	lockCtx := ctx
	if m.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, m.lockWait)
		defer cancel()
	}
	unlock, err := m.locker.Lock(lockCtx, channel)
	if err != nil {
		m.logger.Warn("puzzle_lock_failed", zap.String("channel", channel), zap.Error(err))
		return m.finishReply(Reply{Kind: ReplyStoreFailure})
	}
	defer unlock()

	var r Reply
	switch cmd.Kind {
	case CommandNew:
		r = m.start(ctx, channel)
	case CommandResign:
		r = m.resign(ctx, channel)
	default:
		r = m.move(ctx, channel, cmd.Text)
	}
	return m.finishReply(r)
}

func (m *Machine) finishReply(r Reply) Reply {
	r.Text = m.format.Format(r.Kind, r.View)
	return r
}

func (m *Machine) load(ctx context.Context, channel string) (Session, bool) {
	cur, _, err := m.store.Get(ctx, channel)
	if err != nil {
		m.logger.Error("puzzle_store_failed", zap.String("channel", channel), zap.String("op", "get"), zap.Error(err))
		return Session{}, false
	}
	return cur, true
}

func (m *Machine) start(ctx context.Context, channel string) Reply {
	cur, ok := m.load(ctx, channel)
	if !ok {
		return Reply{Kind: ReplyStoreFailure}
	}
	if cur.Active {
		return Reply{Kind: ReplyBusy, View: describe(cur)}
	}

	sess, err := m.fetch(ctx)
	if err != nil {
		m.logger.Warn("puzzle_fetch_failed", zap.String("channel", channel), zap.Error(err))
		return Reply{Kind: ReplyUpstreamFailure}
	}
	view := describe(sess)
	if err := m.store.Set(ctx, channel, sess); err != nil {
		m.logger.Error("puzzle_store_failed", zap.String("channel", channel), zap.String("op", "set"), zap.Error(err))
		return Reply{Kind: ReplyStoreFailure}
	}
	m.logger.Info("puzzle_start",
		zap.String("channel", channel),
		zap.String("session_id", sess.ID),
		zap.String("puzzle_id", sess.PuzzleID),
		zap.Int("rating", sess.Rating),
		zap.Int("line_len", len(sess.Line)),
	)
	return Reply{Kind: ReplyPuzzle, View: view}
}

// fetch builds a ready session from the puzzle source. Nothing is stored on failure.
func (m *Machine) fetch(ctx context.Context) (Session, error) {
	rec, err := m.source.Fetch(ctx)
	if err != nil {
		return Session{}, err
	}
	if err := rec.Validate(); err != nil {
		return Session{}, err
	}
	pos, err := board.FromFEN(rec.FEN)
	if err != nil {
		return Session{}, errors.Join(puzzle.ErrMalformed, err)
	}
	pos, _, err = pos.Apply(rec.Blunder)
	if err != nil {
		return Session{}, errors.Join(puzzle.ErrMalformed, err)
	}
	return Session{
		ID:        uuid.NewString(),
		Active:    true,
		Position:  pos,
		Line:      cloneStrings(rec.Line),
		Rating:    rec.Rating,
		PuzzleID:  rec.ID,
		StartFEN:  pos.FEN(),
		StartedAt: m.now(),
	}, nil
}

func (m *Machine) resign(ctx context.Context, channel string) Reply {
	cur, ok := m.load(ctx, channel)
	if !ok {
		return Reply{Kind: ReplyStoreFailure}
	}
	if !cur.Active {
		return Reply{Kind: ReplyNotFound}
	}
	view := describe(cur)
	if len(cur.Line) > 0 {
		view.Expected = cur.Line[0]
	}
	if !m.reset(ctx, channel) {
		return Reply{Kind: ReplyStoreFailure}
	}
	m.logger.Info("puzzle_resign", sessionFields(channel, cur)...)
	m.record(ctx, channel, cur, domain.OutcomeResigned, "resign")
	return Reply{Kind: ReplyResigned, View: view}
}

func (m *Machine) move(ctx context.Context, channel, text string) Reply {
	cur, ok := m.load(ctx, channel)
	if !ok {
		return Reply{Kind: ReplyStoreFailure}
	}
	if !cur.Active {
		return Reply{Kind: ReplyNotFound}
	}
	if cur.Position == nil || len(cur.Line) == 0 {
		return m.abort(ctx, channel, cur, text, errors.New("active session without position or line"))
	}

	next, played, err := cur.Position.Apply(text)
	if err != nil {
		view := describe(cur)
		view.Input = text
		return Reply{Kind: ReplyIllegal, View: view}
	}

	expected := cur.Line[0]
	match, err := cur.Position.Matches(played, expected)
	if err != nil {
		return m.abort(ctx, channel, cur, text, err)
	}
	if !match {
		view := View{SessionID: cur.ID, Rating: cur.Rating, Played: played.SAN, Expected: expected, Input: text}
		if !m.reset(ctx, channel) {
			return Reply{Kind: ReplyStoreFailure}
		}
		m.logger.Info("puzzle_wrong_move", append(sessionFields(channel, cur),
			zap.String("played", played.SAN), zap.String("expected", expected))...)
		m.record(ctx, channel, withPlayed(cur, played.SAN), domain.OutcomeWrong, text)
		return Reply{Kind: ReplyWrong, View: view}
	}

	rest := cur.Line[1:]
	if len(rest) == 0 {
		view := View{SessionID: cur.ID, Rating: cur.Rating, Played: played.SAN, Input: text}
		if !m.reset(ctx, channel) {
			return Reply{Kind: ReplyStoreFailure}
		}
		m.logger.Info("puzzle_solved", sessionFields(channel, cur)...)
		m.record(ctx, channel, withPlayed(cur, played.SAN), domain.OutcomeSolved, text)
		return Reply{Kind: ReplySolved, View: view}
	}

	after, reply, err := next.Apply(rest[0])
	if err != nil {
		return m.abort(ctx, channel, withPlayed(cur, played.SAN), text, err)
	}
	if len(rest) == 1 {
		return m.abort(ctx, channel, withPlayed(cur, played.SAN), text, errors.New("forced line ends on an opponent move"))
	}

	updated := cur.Clone()
	updated.Position = after
	updated.Line = cloneStrings(rest[1:])
	updated.Played = append(updated.Played, played.SAN, reply.SAN)

	view := describe(updated)
	view.Played = played.SAN
	view.Opponent = reply.SAN
	view.Input = text
	if err := m.store.Set(ctx, channel, updated); err != nil {
		m.logger.Error("puzzle_store_failed", zap.String("channel", channel), zap.String("op", "set"), zap.Error(err))
		return Reply{Kind: ReplyStoreFailure}
	}
	return Reply{Kind: ReplyContinue, View: view}
}

// abort ends a session whose stored solution cannot be played out.
func (m *Machine) abort(ctx context.Context, channel string, cur Session, input string, cause error) Reply {
	view := View{SessionID: cur.ID, Rating: cur.Rating, Input: input}
	if !m.reset(ctx, channel) {
		return Reply{Kind: ReplyStoreFailure}
	}
	m.logger.Error("puzzle_internal_error", append(sessionFields(channel, cur),
		zap.String("puzzle_id", cur.PuzzleID),
		zap.Strings("line", cur.Line),
		zap.Error(cause))...)
	m.record(ctx, channel, cur, domain.OutcomeInternalError, input)
	return Reply{Kind: ReplyInternal, View: view}
}

func (m *Machine) reset(ctx context.Context, channel string) bool {
	if err := m.store.Reset(ctx, channel); err != nil {
		m.logger.Error("puzzle_store_failed", zap.String("channel", channel), zap.String("op", "reset"), zap.Error(err))
		return false
	}
	return true
}

func (m *Machine) record(ctx context.Context, channel string, s Session, outcome domain.AttemptOutcome, input string) {
	if m.recorder == nil {
		return
	}
	ended := m.now()
	attempt := &domain.PuzzleAttempt{
		SessionUUID: s.ID,
		Channel:     channel,
		PuzzleID:    s.PuzzleID,
		Rating:      s.Rating,
		StartFEN:    s.StartFEN,
		Outcome:     outcome,
		MovesSAN:    cloneStrings(s.Played),
		LastInput:   input,
		StartedAt:   s.StartedAt,
		EndedAt:     ended,
		Duration:    ended.Sub(s.StartedAt),
	}
	if err := m.recorder.RecordAttempt(ctx, attempt); err != nil {
		m.logger.Warn("puzzle_record_failed", append(sessionFields(channel, s), zap.Error(err))...)
	}
}

func describe(s Session) View {
	v := View{SessionID: s.ID, Rating: s.Rating}
	if s.Position != nil {
		v.FEN = s.Position.FEN()
		v.Turn = s.Position.Turn()
		v.LegalMoves = s.Position.LegalMoves()
	}
	return v
}

func withPlayed(s Session, san string) Session {
	out := s.Clone()
	out.Played = append(out.Played, san)
	return out
}

func sessionFields(channel string, s Session) []zap.Field {
	return []zap.Field{
		zap.String("channel", channel),
		zap.String("session_id", s.ID),
		zap.Int("rating", s.Rating),
	}
}
