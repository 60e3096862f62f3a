package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"studybuddy"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one quiz and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("studybuddy", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		topic        = flags.String("topic", "", "Quiz topic (required)")
		questionType = flags.String("type", "mcq", "Question type (mcq, fill-blank)")
		difficulty   = flags.String("difficulty", "Medium", "Difficulty level (Easy, Medium, Hard)")
		numQuestions = flags.Int("questions", 3, "Number of questions to generate (1-10)")
		configPath   = flags.String("config", studybuddy.DefaultConfigPath, "Path to the provider configuration")
		provider     = flags.String("provider", "", "Override the configured default provider")
		export       = flags.Bool("export", false, "Export results to CSV after grading")
		verbose      = flags.Bool("verbose", false, "Enable verbose debugging output")
	)

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *topic == "" {
		fmt.Fprintln(stderr, "Topic is required. Use -topic flag.")
		return 2
	}

	cfg, err := studybuddy.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if *provider != "" {
		cfg.DefaultProvider = strings.ToLower(*provider)
	}
	cfg.Log.Verbose = *verbose

	logger, closer, err := studybuddy.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logging: %v\n", err)
		return 1
	}
	defer closer.Close()

	req, err := buildRequest(*topic, *questionType, *difficulty, *numQuestions)
	if err != nil {
		logger.WithError(err).Error("Invalid quiz request")
		fmt.Fprintln(stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	model, err := studybuddy.NewChatModel(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize LLM provider")
		fmt.Fprintln(stderr, "We encountered an issue with the AI provider configuration. Check logs for details.")
		return 1
	}

	maker := studybuddy.NewQuestionMaker(model, cfg.Generation, logger)
	session := studybuddy.NewQuizSession(studybuddy.SessionOptions{
		ExportDir:     cfg.Export.Dir,
		TranscriptDir: cfg.Log.Dir,
	}, logger)

	var archive *studybuddy.DB
	if cfg.Storage.Path != "" {
		archive, err = studybuddy.OpenDB(cfg.Storage.Path)
		if err != nil {
			logger.WithError(err).Warn("Results archive disabled")
		} else {
			defer archive.CloseDB()
		}
	}

	fmt.Fprintf(stdout, "🎓 Generating a %s %s quiz about %s (%d questions)...\n\n", req.Difficulty, req.Kind.Label(), req.Topic, req.Count)

	genCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	if err := session.Generate(genCtx, maker, req); err != nil {
		fmt.Fprintln(stderr, "Technical failure during question generation. Check logs for details.")
		return 1
	}

	answers := askQuestions(stdin, stdout, session.Questions())
	if err := session.Evaluate(answers); err != nil {
		logger.WithError(err).Error("Failed to evaluate quiz")
		return 1
	}
	logger.Info("User submitted quiz for evaluation")

	printResults(stdout, session.Results(), session.Score())

	if archive != nil {
		if err := archive.ArchiveResults(session.QuizID(), session.Request(), session.Results()); err != nil {
			logger.WithError(err).Warn("Failed to archive results")
		}
	}

	if *export {
		if path, ok := session.Export(); ok {
			fmt.Fprintf(stdout, "💾 Results archived for monitoring in %s\n", path)
		} else {
			fmt.Fprintln(stdout, "⚠️  Error saving results.")
		}
	}
	return 0
}

func buildRequest(topic, questionType, difficulty string, count int) (studybuddy.GenerationRequest, error) {
	kind, err := studybuddy.ParseQuestionKind(questionType)
	if err != nil {
		return studybuddy.GenerationRequest{}, err
	}
	level, err := studybuddy.ParseDifficulty(difficulty)
	if err != nil {
		return studybuddy.GenerationRequest{}, err
	}
	req := studybuddy.GenerationRequest{
		Topic:      strings.TrimSpace(topic),
		Kind:       kind,
		Difficulty: level,
		Count:      count,
	}
	if err := req.Validate(); err != nil {
		return studybuddy.GenerationRequest{}, err
	}
	return req, nil
}

var optionLabels = []string{"A", "B", "C", "D"}

// askQuestions reads one answer per question. An MCQ answer is a letter or
// number selecting an option and is recorded as the option text.
func askQuestions(in io.Reader, out io.Writer, questions []studybuddy.Question) []string {
	scanner := bufio.NewScanner(in)
	answers := make([]string, 0, len(questions))

	for i, q := range questions {
		fmt.Fprintf(out, "Question %d/%d:\n%s\n\n", i+1, len(questions), q.Text())

		switch q.Kind {
		case studybuddy.KindMCQ:
			for j, option := range q.Options() {
				fmt.Fprintf(out, "%s) %s\n", optionLabels[j], option)
			}
			fmt.Fprintln(out)
			for {
				fmt.Fprint(out, "Your answer (A/B/C/D): ")
				if !scanner.Scan() {
					answers = append(answers, "")
					break
				}
				if choice, ok := parseChoice(scanner.Text(), q.Options()); ok {
					answers = append(answers, choice)
					break
				}
				fmt.Fprintln(out, "Please enter A, B, C, or D")
			}
		default:
			fmt.Fprint(out, "Your answer: ")
			if scanner.Scan() {
				answers = append(answers, scanner.Text())
			} else {
				answers = append(answers, "")
			}
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, strings.Repeat("─", 50))
		fmt.Fprintln(out)
	}
	return answers
}

func parseChoice(input string, options []string) (string, bool) {
	input = strings.ToUpper(strings.TrimSpace(input))
	if input == "" {
		return "", false
	}
	for i, label := range optionLabels {
		if i >= len(options) {
			break
		}
		if input == label || input == fmt.Sprint(i+1) {
			return options[i], true
		}
	}
	return "", false
}

func printResults(out io.Writer, results []studybuddy.GradedResult, score studybuddy.Score) {
	fmt.Fprintln(out, "📊 Your Performance")
	fmt.Fprintf(out, "Score: %.1f%%  Correct: %d/%d\n\n", score.Percent, score.Correct, score.Total)

	for i, r := range results {
		status := "❌ Incorrect"
		if r.IsCorrect {
			status = "✅ Correct"
		}
		fmt.Fprintf(out, "Question %d - %s\n", i+1, status)
		fmt.Fprintf(out, "  Question: %s\n", r.Question)
		fmt.Fprintf(out, "  Your Answer: %s\n", r.UserAnswer)
		fmt.Fprintf(out, "  Correct Answer: %s\n", r.CorrectAnswer)
		fmt.Fprintf(out, "  💡 Explanation: %s\n\n", r.Explanation)
	}
}
