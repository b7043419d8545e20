package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"narvalo-quiz/internal/app"
	"narvalo-quiz/internal/config"
	"narvalo-quiz/internal/domain"
	"narvalo-quiz/internal/infra/sqlite"
	"narvalo-quiz/internal/music"
)

// defaultScoreKey is the record key used when no player is given.
const defaultScoreKey = "scores_data"

// NewPlayCmd runs a quiz in the terminal and keeps scores in a local SQLite file.
func NewPlayCmd(configPath *string) *cobra.Command {
	var (
		difficulty string
		player     string
		mute       bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseDifficulty(difficulty)
			if err != nil {
				return fmt.Errorf("%w %q (want any, easy, medium, hard or emilien)", err, difficulty)
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			loader, err := newQuestionLoader(cfg)
			if err != nil {
				return err
			}
			scores, err := sqlite.Open(cmd.Context(), cfg.SQLite.Path, cfg.Scores.Namespace)
			if err != nil {
				return err
			}
			defer scores.Close()

			session := app.NewSession(cmd.Context(), player, loader, scores, slog.Default())
			defer session.Close()
			out := cmd.OutOrStdout()
			game := &terminalGame{
				session: session,
				music:   music.NewManager(consoleOutput{w: out}, nil, slog.Default()),
				in:      bufio.NewScanner(cmd.InOrStdin()),
				out:     out,
				mute:    mute,
			}
			return game.Run(cmd.Context(), d)
		},
	}
	cmd.Flags().StringVar(&difficulty, "difficulty", "medium", "any, easy, medium, hard or emilien")
	cmd.Flags().StringVar(&player, "player", defaultScoreKey, "key the scores are saved under")
	cmd.Flags().BoolVar(&mute, "mute", false, "disable background music")
	return cmd
}

type terminalGame struct {
	session *app.Session
	music   *music.Manager
	in      *bufio.Scanner
	out     io.Writer
	mute    bool
}

// Run plays rounds until the player quits or input ends.
func (g *terminalGame) Run(ctx context.Context, d domain.Difficulty) error {
	defer g.music.Release()
	scores := g.session.Scores()
	fmt.Fprintf(g.out, "High score: %d  Last score: %d\n", scores.HighScore, scores.LastScore)
	if !d.Unlocked(scores.HighScore) {
		return domain.ErrDifficultyLocked
	}

	load := true
	for {
		if load {
			ready, err := g.load(ctx, d)
			if err != nil || !ready {
				return err
			}
		}
		finished, err := g.round(ctx, d)
		if err != nil || !finished {
			return err
		}
		switch g.ask("[r]eplay these questions, [n]ew questions or [q]uit? ") {
		case "r":
			g.session.ResetQuiz()
			load = false
		case "n":
			load = true
		default:
			return nil
		}
	}
}

func (g *terminalGame) load(ctx context.Context, d domain.Difficulty) (bool, error) {
	if !g.mute {
		if err := g.music.Play(music.TrackFor(d), true); err != nil {
			fmt.Fprintf(g.out, "music unavailable: %v\n", err)
		}
	}
	for {
		fmt.Fprintf(g.out, "Loading %s questions...\n", d)
		state, err := g.session.LoadQuestions(ctx, d)
		if err != nil {
			return false, err
		}
		if state.Status == domain.StatusReady {
			return true, nil
		}
		fmt.Fprintf(g.out, "Error: %s\n", state.Message)
		if g.ask("Retry? [y/N] ") != "y" {
			return false, nil
		}
	}
}

// round asks every remaining question; it reports false if the player quit midway.
func (g *terminalGame) round(ctx context.Context, d domain.Difficulty) (bool, error) {
	total := len(g.session.State().Questions)
	for {
		q, ok := g.session.CurrentQuestion()
		if !ok {
			break
		}
		index := g.session.Progress().CurrentIndex
		answers := q.AllAnswers()
		fmt.Fprintf(g.out, "\nQuestion %d/%d [%s]\n%s\n", index+1, total, q.Category, q.Prompt)
		for i, a := range answers {
			fmt.Fprintf(g.out, "  %d) %s\n", i+1, a)
		}

		choice, ok := g.choose(answers)
		if !ok {
			return false, nil
		}
		if g.session.AnswerQuestion(choice, q.CorrectAnswer, d.Multiplier()) {
			fmt.Fprintf(g.out, "Correct! +%d\n", 100*d.Multiplier())
		} else {
			fmt.Fprintf(g.out, "Wrong, the answer was %s\n", q.CorrectAnswer)
		}
		g.session.NextQuestion()
	}

	record, err := g.session.FinishQuiz(ctx)
	if err != nil {
		return false, err
	}
	p := g.session.Progress()
	fmt.Fprintf(g.out, "\nQuiz over: %d/%d correct, score %d\n", p.CorrectCount, total, p.Score)
	fmt.Fprintf(g.out, "High score: %d  Last score: %d\n", record.HighScore, record.LastScore)
	return true, nil
}

// choose accepts an answer number or the answer text; "q" or end of input quits.
func (g *terminalGame) choose(answers []string) (string, bool) {
	for {
		line, ok := g.readLine("> ")
		if !ok || strings.EqualFold(line, "q") {
			return "", false
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(answers) {
			return answers[n-1], true
		}
		for _, a := range answers {
			if strings.EqualFold(a, line) {
				return a, true
			}
		}
		fmt.Fprintf(g.out, "Pick 1-%d or q to quit\n", len(answers))
	}
}

func (g *terminalGame) ask(prompt string) string {
	line, _ := g.readLine(prompt)
	return strings.ToLower(line)
}

func (g *terminalGame) readLine(prompt string) (string, bool) {
	fmt.Fprint(g.out, prompt)
	if !g.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(g.in.Text()), true
}

// consoleOutput announces playback in the terminal; actual audio is left to the user's player.
type consoleOutput struct {
	w io.Writer
}

func (o consoleOutput) Open(track music.Track, loop bool) error {
	fmt.Fprintf(o.w, "♪ %s\n", track)
	return nil
}

func (consoleOutput) Start()            {}
func (consoleOutput) Pause()            {}
func (consoleOutput) Stop()             {}
func (consoleOutput) SetVolume(float64) {}
func (consoleOutput) Close()            {}
