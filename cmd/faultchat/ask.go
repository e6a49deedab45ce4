package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kalambet/faultchat/internal/config"
	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/diagnosis"
	"github.com/kalambet/faultchat/internal/format"
	"github.com/kalambet/faultchat/internal/intake"
)

var askCmd = &cobra.Command{
	Use:   "ask [query...]",
	Short: "Run one diagnosis dialogue on the terminal",
	Long: `Run one diagnosis dialogue on the terminal.

The query comes from the arguments, from --report, or from the first line of
stdin. When the service asks a question, answer with an option number or your
own words; an empty line ends the dialogue.

Examples:
  faultchat ask "main engine overheating"
  faultchat ask --engine hybrid "vibration at high load"
  faultchat ask --report ./incident.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _ := cmd.Flags().GetString("engine")
		report, _ := cmd.Flags().GetString("report")
		plain, _ := cmd.Flags().GetBool("plain")

		query := strings.Join(args, " ")
		if report != "" {
			if query != "" {
				return fmt.Errorf("use either a query or --report, not both")
			}
			text, err := intake.ReadReport(report)
			if err != nil {
				return err
			}
			query = text
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, engine, newLogger(cfg, os.Stderr))
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := &askSession{
			conv: a.conv,
			in:   bufio.NewScanner(os.Stdin),
			out:  os.Stdout,
		}
		if !plain && !noColor && !cfg.UI.NoColor {
			s.render = glamourRenderer()
		}
		return s.run(ctx, query)
	},
}

func init() {
	askCmd.Flags().String("engine", "", "diagnosis engine: rule, neural or hybrid")
	askCmd.Flags().String("report", "", "read the query from a text or PDF fault report")
	askCmd.Flags().Bool("plain", false, "print markdown without terminal styling")
}

// askSession is a line-mode dialogue.
type askSession struct {
	conv *conversation.Conversation
	in   *bufio.Scanner
	out  io.Writer
	// render styles markdown for the terminal; nil prints it verbatim.
	render func(string) string
}

var errNoQuery = errors.New("no query given")

func (s *askSession) run(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		fmt.Fprint(s.out, "Describe the problem: ")
		line, ok := s.readLine()
		if !ok || strings.TrimSpace(line) == "" {
			return errNoQuery
		}
		query = line
	}

	text := query
	for {
		out, err := s.conv.Submit(ctx, text, diagnosis.EngineDefault)
		if err != nil {
			return err
		}
		switch out.Kind {
		case conversation.OutcomeFailure:
			return fmt.Errorf("request failed: %w", out.Err)
		case conversation.OutcomeDiagnosis:
			s.print(out.Entry.Content.Text)
			return nil
		}

		s.print(out.Entry.Content.Text)
		answer, ok := s.answer(*out.Clarification)
		if !ok {
			return nil
		}
		text = answer
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// answer prompts until the user picks an option, types an accepted free-text
// answer, or ends the dialogue with an empty line or EOF.
func (s *askSession) answer(c format.RenderedClarification) (string, bool) {
	for {
		fmt.Fprint(s.out, "> ")
		line, ok := s.readLine()
		if !ok {
			return "", false
		}
		text, err := parseAnswer(c, line)
		if errors.Is(err, errEndDialogue) {
			return "", false
		}
		if err != nil {
			fmt.Fprintln(s.out, err)
			continue
		}
		return text, true
	}
}

var (
	errEndDialogue = errors.New("dialogue ended")
	errPickOption  = errors.New("please answer with one of the option numbers")
)

// parseAnswer maps a typed line to the next query text. A number selects an
// option; other text is sent as is when the clarification allows it.
func parseAnswer(c format.RenderedClarification, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errEndDialogue
	}
	if n, err := strconv.Atoi(line); err == nil && len(c.Options) > 0 {
		return c.Select(n - 1)
	}
	if err := c.Accept(line); err != nil {
		return "", errPickOption
	}
	return line, nil
}

func (s *askSession) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return s.in.Text(), true
}

func (s *askSession) print(md string) {
	if s.render != nil {
		md = s.render(md)
	}
	fmt.Fprintln(s.out, strings.TrimRight(md, "\n"))
}

func glamourRenderer() func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil
	}
	return func(md string) string {
		out, err := r.Render(md)
		if err != nil {
			return md
		}
		return out
	}
}
