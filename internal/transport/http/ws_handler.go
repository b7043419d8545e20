package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"narvalo-quiz/internal/app"
	"narvalo-quiz/internal/domain"
	"narvalo-quiz/internal/music"
)

var (
	errNoQuestion      = errors.New("no active question")
	errAlreadyAnswered = errors.New("question already answered")
	errNotAnswered     = errors.New("answer the current question first")
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type loadPayload struct {
	Difficulty string `json:"difficulty"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type musicPayload struct {
	Enabled bool `json:"enabled"`
}

type focusPayload struct {
	Change string `json:"change"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type statePayload struct {
	Generation uint64             `json:"generation"`
	Difficulty string             `json:"difficulty"`
	Status     domain.Status      `json:"status"`
	Message    string             `json:"message,omitempty"`
	Total      int                `json:"total"`
	Progress   domain.Progress    `json:"progress"`
	Scores     domain.ScoreRecord `json:"scores"`
}

type questionView struct {
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Prompt     string   `json:"question"`
	Answers    []string `json:"answers"`
}

type answerResult struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	Awarded       int    `json:"awarded"`
	Score         int    `json:"score"`
}

type completedPayload struct {
	Score        int `json:"score"`
	CorrectCount int `json:"correctCount"`
	Total        int `json:"total"`
	HighScore    int `json:"highScore"`
	LastScore    int `json:"lastScore"`
}

type musicCommand struct {
	Action string  `json:"action"`
	Track  string  `json:"track,omitempty"`
	Loop   bool    `json:"loop,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

var focusChanges = map[string]music.FocusChange{
	"gain":           music.FocusGain,
	"loss":           music.FocusLoss,
	"loss_transient": music.FocusLossTransient,
	"duck":           music.FocusLossTransientCanDuck,
}

// ServeWS upgrades HTTP requests to websockets and drives one player's quiz session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "missing player", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session := h.service.Open(ctx, playerID)
	updates, cancel := session.Subscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	emit := func(typ string, payload any) {
		select {
		case send <- outboundMessage[any]{Type: typ, Payload: payload}:
		case <-closeSignals:
		}
	}
	fail := func(err error) { emit("error", errorPayload{Message: err.Error()}) }

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	view := &presenter{index: -1}
	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				emit("state", newStatePayload(snap))
				if q, ok := view.observe(snap); ok {
					emit("question", q)
				}
			case <-closeSignals:
				return
			}
		}
	}()

	player := music.NewManager(remoteOutput{emit: emit}, nil, nil)
	musicOn := true
	var loads sync.WaitGroup

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "load":
			var payload loadPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid load payload"))
				continue
			}
			d, err := domain.ParseDifficulty(payload.Difficulty)
			if err != nil {
				fail(err)
				continue
			}
			if !d.Unlocked(session.Scores().HighScore) {
				fail(domain.ErrDifficultyLocked)
				continue
			}
			if musicOn {
				if err := player.Play(music.TrackFor(d), true); err != nil {
					log.Printf("music play failed for %s: %v", playerID, err)
				}
			}
			loads.Add(1)
			go func() {
				defer loads.Done()
				if _, err := session.LoadQuestions(ctx, d); err != nil && !errors.Is(err, domain.ErrSuperseded) {
					log.Printf("load for %s failed: %v", playerID, err)
				}
			}()
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid answer payload"))
				continue
			}
			q, err := view.claim()
			if err != nil {
				fail(err)
				continue
			}
			mult := session.Difficulty().Multiplier()
			correct := session.AnswerQuestion(payload.Answer, q.CorrectAnswer, mult)
			result := answerResult{Correct: correct, CorrectAnswer: q.CorrectAnswer, Score: session.Progress().Score}
			if correct {
				result.Awarded = 100 * mult
			}
			emit("answerResult", result)
		case "next":
			if err := view.advance(); err != nil {
				fail(err)
				continue
			}
			session.NextQuestion()
			if session.Completed() {
				h.finish(ctx, session, emit)
			}
		case "reset":
			view.invalidate()
			session.ResetQuiz()
		case "resetScores":
			if err := session.ResetScores(ctx); err != nil {
				log.Printf("resetting scores for %s failed: %v", playerID, err)
				fail(errors.New("could not reset scores"))
			}
		case "music":
			var payload musicPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid music payload"))
				continue
			}
			musicOn = payload.Enabled
			if musicOn {
				if err := player.Play(music.TrackFor(session.Difficulty()), true); err != nil {
					log.Printf("music play failed for %s: %v", playerID, err)
				}
			} else {
				player.Stop()
			}
		case "focus":
			var payload focusPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid focus payload"))
				continue
			}
			change, ok := focusChanges[payload.Change]
			if !ok {
				fail(errors.New("unknown focus change"))
				continue
			}
			player.OnFocusChange(change)
		default:
			fail(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	player.Release()
	cancel()
	h.service.Close(playerID)
	loads.Wait()
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) finish(ctx context.Context, session *app.Session, emit func(string, any)) {
	record, err := session.FinishQuiz(ctx)
	if err != nil {
		log.Printf("saving scores failed: %v", err)
		emit("error", errorPayload{Message: "could not save scores"})
	}
	progress := session.Progress()
	emit("completed", completedPayload{
		Score:        progress.Score,
		CorrectCount: progress.CorrectCount,
		Total:        len(session.State().Questions),
		HighScore:    record.HighScore,
		LastScore:    record.LastScore,
	})
}

func newStatePayload(snap domain.Snapshot) statePayload {
	return statePayload{
		Generation: snap.Generation,
		Difficulty: snap.Difficulty.String(),
		Status:     snap.State.Status,
		Message:    snap.State.Message,
		Total:      len(snap.State.Questions),
		Progress:   snap.Progress,
		Scores:     snap.Scores,
	}
}

// presenter tracks the question shown to the client. Answer order is shuffled once per
// view and a question accepts a single answer.
type presenter struct {
	mu         sync.Mutex
	generation uint64
	index      int
	question   domain.Question
	active     bool
	answered   bool
}

// observe returns the view to send when snap moved to a question not shown yet.
func (p *presenter) observe(snap domain.Snapshot) (questionView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.State.Status != domain.StatusReady {
		p.active = false
		p.index = -1
		return questionView{}, false
	}
	idx := snap.Progress.CurrentIndex
	if snap.Generation == p.generation && idx == p.index {
		return questionView{}, false
	}
	p.generation, p.index = snap.Generation, idx
	if idx >= len(snap.State.Questions) {
		p.active = false
		return questionView{}, false
	}
	q := snap.State.Questions[idx]
	p.question, p.active, p.answered = q, true, false
	return questionView{
		Index:      idx,
		Total:      len(snap.State.Questions),
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Prompt:     q.Prompt,
		Answers:    q.AllAnswers(),
	}, true
}

func (p *presenter) claim() (domain.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return domain.Question{}, errNoQuestion
	}
	if p.answered {
		return domain.Question{}, errAlreadyAnswered
	}
	p.answered = true
	return p.question, nil
}

// advance consumes the answered question so a repeated "next" cannot skip ahead.
func (p *presenter) advance() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return errNoQuestion
	}
	if !p.answered {
		return errNotAnswered
	}
	p.active = false
	return nil
}

// invalidate forces the next ready snapshot to be shown again.
func (p *presenter) invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = -1
}

// remoteOutput renders music on the client by forwarding playback commands.
type remoteOutput struct {
	emit func(string, any)
}

func (o remoteOutput) Open(track music.Track, loop bool) error {
	o.emit("music", musicCommand{Action: "open", Track: string(track), Loop: loop})
	return nil
}

func (o remoteOutput) Start() { o.emit("music", musicCommand{Action: "start"}) }
func (o remoteOutput) Pause() { o.emit("music", musicCommand{Action: "pause"}) }
func (o remoteOutput) Stop()  { o.emit("music", musicCommand{Action: "stop"}) }
func (o remoteOutput) Close() { o.emit("music", musicCommand{Action: "close"}) }

func (o remoteOutput) SetVolume(v float64) {
	o.emit("music", musicCommand{Action: "volume", Volume: v})
}
