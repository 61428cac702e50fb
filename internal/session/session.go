package session

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizroom/internal/domain"
)

// Client is the outbound endpoint for one connected participant. Send must
// never block; slow consumers drop stale frames at the transport layer.
type Client interface {
	Send(evt domain.Event)
	Close()
}

// HistoryRepository accepts one finished-game summary record.
type HistoryRepository interface {
	SaveGame(ctx context.Context, record domain.GameRecord) error
}

// Mode selects the session variant.
type Mode int

const (
	// ModeNormal is an organizer-driven game with any number of players.
	ModeNormal Mode = iota
	// ModeTester is a private single-participant rehearsal; no history record.
	ModeTester
	// ModeRandom is a single-participant game over randomly drawn questions.
	ModeRandom
)

const (
	panicThresholdChoice = 10 // seconds
	panicThresholdLong   = 20
	longAnswerDuration   = 60
	defaultDuration      = 30
)

var reservedNames = map[string]bool{
	"organisateur": true,
	"system":       true,
}

type participant struct {
	name   string
	state  domain.PlayerState
	muted  bool
	client Client
}

// GameSession is the per-game state machine. A single worker goroutine owns
// all mutable state and drains a queue of commands; player submissions,
// organizer commands and timer ticks all go through that queue, so every
// transition is atomic by construction.
type GameSession struct {
	code string
	quiz domain.Quiz
	mode Mode

	queue     chan func()
	closed    chan struct{}
	closeOnce sync.Once

	// Owned by the worker; never touched from outside the queue.
	phase        domain.Phase
	questionIdx  int
	transitioned bool
	organizer    *participant
	players      map[string]*participant // keyed by lowercase name
	timer        *TimerEngine
	answers      *AnswerAggregator
	scores       *ScoreKeeper
	history      HistoryRepository
	onEvict      func(code string)
	clock        func() time.Time
	startedAt    time.Time
}

// Options tunes a session; zero values pick production defaults.
type Options struct {
	History      HistoryRepository
	OnEvict      func(code string)
	Clock        func() time.Time
	TickInterval time.Duration
}

func NewGameSession(code string, quiz domain.Quiz, mode Mode, opts Options) *GameSession {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	g := &GameSession{
		code:        code,
		quiz:        quiz,
		mode:        mode,
		queue:       make(chan func(), 64),
		closed:      make(chan struct{}),
		phase:       domain.PhaseLobby,
		questionIdx: -1,
		players:     make(map[string]*participant),
		answers:     NewAnswerAggregator(opts.Clock),
		scores:      NewScoreKeeper(),
		history:     opts.History,
		onEvict:     opts.OnEvict,
		clock:       opts.Clock,
	}
	g.timer = NewTimerEngine(g.enqueue, opts.TickInterval, g.handleTick, g.handleExpiry)
	go g.run()
	return g
}

func (g *GameSession) Code() string { return g.code }
func (g *GameSession) Mode() Mode   { return g.mode }

// Phase reads the current phase through the worker for a consistent view.
func (g *GameSession) Phase() domain.Phase {
	phase, err := call(g, func() (domain.Phase, error) { return g.phase, nil })
	if err != nil {
		return domain.PhaseFinished
	}
	return phase
}

func (g *GameSession) run() {
	for {
		select {
		case f := <-g.queue:
			f()
		case <-g.closed:
			return
		}
	}
}

// enqueue hands a command to the worker, dropping it once the session ended.
func (g *GameSession) enqueue(f func()) {
	select {
	case g.queue <- f:
	case <-g.closed:
	}
}

func (g *GameSession) do(f func()) error {
	select {
	case g.queue <- f:
		return nil
	case <-g.closed:
		return domain.ErrInvalidSession
	}
}

// call runs f on the worker and waits for its result.
func call[T any](g *GameSession, f func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	started := make(chan struct{})
	if err := g.do(func() {
		close(started)
		v, err := f()
		ch <- result{v, err}
	}); err != nil {
		var zero T
		return zero, err
	}
	select {
	case r := <-ch:
		return r.v, r.err
	case <-g.closed:
		// f itself may have closed the session (e.g. finish); once it has
		// started, its result is guaranteed to arrive, so report it instead
		// of mislabeling a completed command as dropped.
		select {
		case <-started:
			r := <-ch
			return r.v, r.err
		default:
			var zero T
			return zero, domain.ErrInvalidSession
		}
	}
}

// ---- joins and disconnects ----

// JoinOrganizer attaches the organizer connection. A session holds exactly one.
func (g *GameSession) JoinOrganizer(client Client) error {
	_, err := call(g, func() (struct{}, error) {
		if g.organizer != nil {
			return struct{}{}, domain.ErrNameUnavailable
		}
		g.organizer = &participant{name: "organisateur", state: domain.StateConnected, client: client}
		return struct{}{}, nil
	})
	return err
}

// JoinPlayer attaches a named player while the lobby is open. Names are
// unique per session (case-insensitive) and reserved names are rejected.
func (g *GameSession) JoinPlayer(name string, client Client) error {
	_, err := call(g, func() (struct{}, error) {
		if g.phase != domain.PhaseLobby {
			return struct{}{}, domain.ErrGameUnderway
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || reservedNames[key] {
			return struct{}{}, domain.ErrNameUnavailable
		}
		if _, taken := g.players[key]; taken {
			return struct{}{}, domain.ErrNameUnavailable
		}
		g.players[key] = &participant{name: strings.TrimSpace(name), state: domain.StateConnected, client: client}
		g.scores.Register(strings.TrimSpace(name))
		g.broadcast(domain.Event{Type: "refreshPlayerList", Payload: g.roster()})
		return struct{}{}, nil
	})
	return err
}

// JoinSolo attaches the single participant of a tester or random session, who
// both answers questions and holds advance rights.
func (g *GameSession) JoinSolo(name string, client Client) error {
	_, err := call(g, func() (struct{}, error) {
		if g.mode == ModeNormal {
			return struct{}{}, domain.ErrNotPermitted
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || reservedNames[key] {
			return struct{}{}, domain.ErrNameUnavailable
		}
		p := &participant{name: strings.TrimSpace(name), state: domain.StateConnected, client: client}
		g.players[key] = p
		g.organizer = p
		g.scores.Register(p.name)
		return struct{}{}, nil
	})
	return err
}

// Disconnect handles a dropped connection. The organizer leaving terminates
// the session; a player leaving shrinks the all-finalized denominator and, if
// nobody is left answering, auto-terminates without a history record.
func (g *GameSession) Disconnect(role domain.Role, name string) {
	_ = g.do(func() {
		if g.phase == domain.PhaseFinished {
			return
		}
		if role == domain.RoleOrganizer && g.mode == ModeNormal {
			g.broadcast(domain.Event{Type: "sessionEnded"})
			g.terminate()
			return
		}
		if g.mode != ModeNormal {
			// The sole participant left; nothing to keep alive.
			g.terminate()
			return
		}
		key := strings.ToLower(name)
		p, ok := g.players[key]
		if !ok || p.state == domain.StateDisconnected {
			return
		}
		if g.phase == domain.PhaseLobby {
			delete(g.players, key)
			g.broadcast(domain.Event{Type: "refreshPlayerList", Payload: g.roster()})
			return
		}
		p.state = domain.StateDisconnected
		g.broadcast(domain.Event{Type: "playerStateChanged", Payload: domain.PlayerView{
			Name: p.name, State: p.state, Muted: p.muted, Score: g.scores.Score(p.name),
		}})
		g.broadcast(domain.Event{Type: "refreshPlayerList", Payload: g.roster()})
		if g.connectedPlayers() == 0 {
			g.sendOrganizer(domain.Event{Type: "allPlayerDisconnected"})
			g.terminate()
			return
		}
		g.maybeComplete()
	})
}

// ---- player operations ----

// CurrentQuestion returns the active question stripped of correctness flags.
func (g *GameSession) CurrentQuestion() (domain.QuestionView, error) {
	return call(g, func() (domain.QuestionView, error) {
		if g.phase != domain.PhaseQuestionActive && g.phase != domain.PhaseAwaitingEvaluation {
			return domain.QuestionView{}, domain.ErrInvalidSubmission
		}
		return g.questionView(), nil
	})
}

// SubmitChoices records a pending multiple-choice selection.
func (g *GameSession) SubmitChoices(name string, choices []int) error {
	_, err := call(g, func() (struct{}, error) {
		p, err := g.activePlayer(name)
		if err != nil {
			return struct{}{}, err
		}
		if err := g.answers.SubmitChoices(p.name, choices); err != nil {
			return struct{}{}, err
		}
		g.setPlayerState(p, domain.StateAnswering)
		return struct{}{}, nil
	})
	return err
}

// UpdateLongAnswer records a pending free-text answer.
func (g *GameSession) UpdateLongAnswer(name, text string) error {
	_, err := call(g, func() (struct{}, error) {
		p, err := g.activePlayer(name)
		if err != nil {
			return struct{}{}, err
		}
		if err := g.answers.SubmitText(p.name, text); err != nil {
			return struct{}{}, err
		}
		g.setPlayerState(p, domain.StateAnswering)
		return struct{}{}, nil
	})
	return err
}

// Finalize irrevocably locks a player's answer. Returns false without error
// when a multiple-choice submission has nothing selected.
func (g *GameSession) Finalize(name string) (bool, error) {
	return call(g, func() (bool, error) {
		p, err := g.activePlayer(name)
		if err != nil {
			return false, err
		}
		if err := g.answers.Finalize(p.name); err != nil {
			return false, nil
		}
		g.setPlayerState(p, domain.StateFinalized)
		g.maybeComplete()
		return true, nil
	})
}

// ---- organizer operations ----

// NextQuestion advances Lobby or ShowingResults to the next question, or to
// Finished when the sequence is exhausted.
func (g *GameSession) NextQuestion() error {
	_, err := call(g, func() (struct{}, error) {
		switch g.phase {
		case domain.PhaseLobby:
			if g.mode == ModeNormal && g.connectedPlayers() == 0 {
				return struct{}{}, domain.ErrInvalidSubmission
			}
			g.startedAt = g.clock()
		case domain.PhaseShowingResults:
		default:
			return struct{}{}, domain.ErrInvalidSubmission
		}
		if g.questionIdx+1 >= len(g.quiz.Questions) {
			g.finish()
			return struct{}{}, nil
		}
		g.startQuestion()
		return struct{}{}, nil
	})
	return err
}

// GoToResult ends the game from ShowingResults, broadcasting the final
// leaderboard even when questions remain (early end).
func (g *GameSession) GoToResult() error {
	_, err := call(g, func() (struct{}, error) {
		if g.phase != domain.PhaseShowingResults {
			return struct{}{}, domain.ErrInvalidSubmission
		}
		g.finish()
		return struct{}{}, nil
	})
	return err
}

// PauseTimer toggles the countdown and syncs the run flag to all clients.
func (g *GameSession) PauseTimer() error {
	_, err := call(g, func() (struct{}, error) {
		if g.phase != domain.PhaseQuestionActive {
			return struct{}{}, domain.ErrInvalidSubmission
		}
		if g.timer.Paused() {
			g.timer.Resume()
		} else {
			g.timer.Pause()
		}
		g.broadcast(domain.Event{Type: "toggleTimerSpin", Payload: domain.TimerView{
			Remaining: g.timer.Remaining(), Paused: g.timer.Paused(), Panic: g.timer.InPanic(),
		}})
		return struct{}{}, nil
	})
	return err
}

// EnterPanic flags urgency when the countdown is at or below the
// question-type threshold. Repeated or early calls are silent no-ops.
func (g *GameSession) EnterPanic() error {
	_, err := call(g, func() (struct{}, error) {
		if g.phase != domain.PhaseQuestionActive {
			return struct{}{}, domain.ErrInvalidSubmission
		}
		threshold := panicThresholdChoice
		if g.currentQuestion().Type == domain.LongAnswer {
			threshold = panicThresholdLong
		}
		if g.timer.EnterPanic(threshold) {
			g.broadcast(domain.Event{Type: "enterInPanicMode"})
		}
		return struct{}{}, nil
	})
	return err
}

// EvaluateLongAnswers completes AwaitingEvaluation. The evaluation set must
// cover every pending respondent exactly once with multipliers in [0, 1].
func (g *GameSession) EvaluateLongAnswers(evals []domain.Evaluation) error {
	_, err := call(g, func() (struct{}, error) {
		if g.phase != domain.PhaseAwaitingEvaluation {
			return struct{}{}, domain.ErrInvalidSubmission
		}
		pending := g.answers.Respondents()
		if len(evals) != len(pending) {
			return struct{}{}, domain.ErrInvalidSubmission
		}
		covered := make(map[string]float64, len(evals))
		for _, ev := range evals {
			if ev.Multiplier < 0 || ev.Multiplier > 1 {
				return struct{}{}, domain.ErrInvalidSubmission
			}
			if _, dup := covered[ev.Name]; dup {
				return struct{}{}, domain.ErrInvalidSubmission
			}
			covered[ev.Name] = ev.Multiplier
		}
		for _, name := range pending {
			if _, ok := covered[name]; !ok {
				return struct{}{}, domain.ErrInvalidSubmission
			}
		}
		q := g.currentQuestion()
		for name, multiplier := range covered {
			g.scores.AwardMultiplied(name, q.Points, multiplier)
		}
		g.showResults()
		return struct{}{}, nil
	})
	return err
}

// ToggleChat flips a player's mute flag.
func (g *GameSession) ToggleChat(name string) error {
	_, err := call(g, func() (struct{}, error) {
		p, ok := g.players[strings.ToLower(name)]
		if !ok {
			return struct{}{}, domain.ErrInvalidSubmission
		}
		p.muted = !p.muted
		g.broadcast(domain.Event{Type: "playerChatToggled", Payload: domain.PlayerView{
			Name: p.name, State: p.state, Muted: p.muted, Score: g.scores.Score(p.name),
		}})
		return struct{}{}, nil
	})
	return err
}

// ---- worker-side internals ----

func (g *GameSession) activePlayer(name string) (*participant, error) {
	if g.phase != domain.PhaseQuestionActive {
		return nil, domain.ErrInvalidSubmission
	}
	p, ok := g.players[strings.ToLower(name)]
	if !ok || p.state == domain.StateDisconnected {
		return nil, domain.ErrInvalidSubmission
	}
	return p, nil
}

func (g *GameSession) setPlayerState(p *participant, state domain.PlayerState) {
	if p.state == state {
		return
	}
	p.state = state
	g.broadcast(domain.Event{Type: "playerStateChanged", Payload: domain.PlayerView{
		Name: p.name, State: p.state, Muted: p.muted, Score: g.scores.Score(p.name),
	}})
}

func (g *GameSession) currentQuestion() domain.Question {
	return g.quiz.Questions[g.questionIdx]
}

func (g *GameSession) questionView() domain.QuestionView {
	q := g.currentQuestion()
	view := domain.QuestionView{
		Text:   q.Text,
		Type:   q.Type,
		Points: q.Points,
		Index:  g.questionIdx,
		Total:  len(g.quiz.Questions),
	}
	for _, choice := range q.Choices {
		view.Choices = append(view.Choices, choice.Text)
	}
	return view
}

func (g *GameSession) startQuestion() {
	g.questionIdx++
	g.transitioned = false
	q := g.currentQuestion()
	g.answers.Reset(q)
	for _, p := range g.players {
		if p.state != domain.StateDisconnected {
			p.state = domain.StateConnected
		}
	}
	duration := g.quiz.Duration
	if q.Type == domain.LongAnswer {
		duration = longAnswerDuration
	}
	if duration <= 0 {
		duration = defaultDuration
	}
	g.phase = domain.PhaseQuestionActive
	g.timer.Start(duration)
	g.broadcast(domain.Event{Type: "loadNextQuestion", Payload: g.questionView()})
	g.broadcast(domain.Event{Type: "refreshPlayerList", Payload: g.roster()})
	g.broadcast(domain.Event{Type: "refreshTimer", Payload: domain.TimerView{Remaining: duration}})
}

func (g *GameSession) handleTick(remaining int) {
	g.broadcast(domain.Event{Type: "refreshTimer", Payload: domain.TimerView{
		Remaining: remaining, Panic: g.timer.InPanic(),
	}})
}

func (g *GameSession) handleExpiry() {
	if g.phase != domain.PhaseQuestionActive || g.transitioned {
		return
	}
	g.completeQuestion()
}

func (g *GameSession) connectedPlayers() int {
	n := 0
	for _, p := range g.players {
		if p.state != domain.StateDisconnected {
			n++
		}
	}
	return n
}

// maybeComplete fires the all-finalized transition. The transitioned flag is
// checked and set on the worker, so the transition fires at most once per
// question no matter how many finalize or disconnect events race in.
func (g *GameSession) maybeComplete() {
	if g.phase != domain.PhaseQuestionActive || g.transitioned {
		return
	}
	connected, finalized := 0, 0
	for _, p := range g.players {
		if p.state == domain.StateDisconnected {
			continue
		}
		connected++
		if g.answers.HasFinalized(p.name) {
			finalized++
		}
	}
	if connected == 0 || finalized < connected {
		return
	}
	g.completeQuestion()
}

func (g *GameSession) completeQuestion() {
	g.transitioned = true
	g.timer.Stop()
	q := g.currentQuestion()
	if q.Type == domain.LongAnswer {
		g.phase = domain.PhaseAwaitingEvaluation
		g.sendOrganizer(domain.Event{Type: "sendLongResponse", Payload: g.answers.LongAnswers()})
		return
	}
	for name, rec := range g.answers.Records() {
		if GradeChoices(q, rec.Choices) {
			g.scores.Award(name, q.Points)
		}
	}
	g.showResults()
}

func (g *GameSession) showResults() {
	g.phase = domain.PhaseShowingResults
	q := g.currentQuestion()
	hist := domain.HistogramView{
		Counts:      g.answers.Histogram(),
		Percentages: g.answers.Percentages(),
	}
	for i, choice := range q.Choices {
		hist.ChoiceTexts = append(hist.ChoiceTexts, choice.Text)
		if choice.Correct {
			hist.CorrectChoices = append(hist.CorrectChoices, i)
		}
	}
	g.broadcast(domain.Event{Type: "updateResults", Payload: hist})
	g.broadcast(domain.Event{Type: "refreshPlayerList", Payload: g.roster()})
}

func (g *GameSession) finish() {
	g.phase = domain.PhaseFinished
	g.timer.Stop()
	g.broadcast(domain.Event{Type: "sendToAllFinalResults", Payload: g.scores.Leaderboard()})
	if g.mode == ModeNormal && g.history != nil && !g.startedAt.IsZero() {
		rec := domain.GameRecord{
			ID:          uuid.NewString(),
			QuizTitle:   g.quiz.Title,
			StartedAt:   g.startedAt,
			DurationSec: int(g.clock().Sub(g.startedAt) / time.Second),
			PlayerCount: len(g.players),
			TopScore:    g.scores.TopScore(),
		}
		// Best effort; the session is finished whether or not the write lands.
		go func(repo HistoryRepository, code string, rec domain.GameRecord) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.SaveGame(ctx, rec); err != nil {
				log.Printf("session %s: history save failed: %v", code, err)
			}
		}(g.history, g.code, rec)
	}
	g.terminate()
}

// terminate closes every connection and retires the worker. No history record
// is written here; finish handles the completed-game path.
func (g *GameSession) terminate() {
	g.phase = domain.PhaseFinished
	g.timer.Stop()
	if g.organizer != nil {
		g.organizer.client.Close()
	}
	for _, p := range g.players {
		if p != g.organizer && p.client != nil {
			p.client.Close()
		}
	}
	g.closeOnce.Do(func() { close(g.closed) })
	if g.onEvict != nil {
		g.onEvict(g.code)
	}
}

func (g *GameSession) roster() []domain.PlayerView {
	views := make([]domain.PlayerView, 0, len(g.players))
	for _, p := range g.players {
		views = append(views, domain.PlayerView{
			Name:  p.name,
			State: p.state,
			Muted: p.muted,
			Score: g.scores.Score(p.name),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

func (g *GameSession) broadcast(evt domain.Event) {
	if g.organizer != nil {
		g.organizer.client.Send(evt)
	}
	for _, p := range g.players {
		if p == g.organizer || p.client == nil || p.state == domain.StateDisconnected {
			continue
		}
		p.client.Send(evt)
	}
}

func (g *GameSession) sendOrganizer(evt domain.Event) {
	if g.organizer != nil {
		g.organizer.client.Send(evt)
	}
}

