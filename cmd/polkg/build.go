package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/systemshift/polkg/internal/logger"
	"github.com/systemshift/polkg/internal/observability"
	"github.com/systemshift/polkg/internal/report"
)

// demoText is processed when no input is given
const demoText = `Joe Biden is a member of the Democratic Party and is the 46th President of the United States.
Donald Trump, a Republican, served as the 45th President before Biden.`

var (
	buildFile     string
	buildNoReport bool
	buildFormat   string
)

var buildCmd = &cobra.Command{
	Use:   "build [text...]",
	Short: "Extract entities from text and merge them into the graph",
	Long: `Extract entities and relationships from text and merge them into the graph.

Input is read from --file, the arguments, or stdin when it is not a terminal.
With no input the built-in demo text is used. Nodes and relationships are
printed afterwards unless --no-report is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(buildFormat)
		if err != nil {
			return err
		}

		text, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		cfg, err := setup(true)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close(ctx)

		b, err := newBuilder(cfg, store, observability.NewCollector(metricsNamespace))
		if err != nil {
			return err
		}

		sum, err := b.Run(ctx, text)
		if err != nil {
			return err
		}
		if sum.Extraction != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: extraction failed: %v\n", sum.Extraction)
		}
		logger.L().Info("graph updated",
			zap.String("run_id", sum.RunID),
			zap.Int("entities", sum.EntitiesWritten),
			zap.Int("relationships", sum.RelationshipsWritten),
		)

		if buildNoReport {
			return nil
		}
		return report.New(store, format, stdoutStyled()).All(ctx, cmd.OutOrStdout())
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", "", "read input text from file")
	buildCmd.Flags().BoolVar(&buildNoReport, "no-report", false, "skip printing the graph")
	buildCmd.Flags().StringVar(&buildFormat, "format", "text", "report format (text, json)")
}

// readInput picks the text to process: --file, then args, then piped stdin,
// then the demo text
func readInput(stdin io.Reader, args []string) (string, error) {
	if buildFile != "" {
		data, err := os.ReadFile(buildFile)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return string(data), nil
	}

	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if f, ok := stdin.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, nil
		}
	}

	return demoText, nil
}

func stdoutStyled() bool {
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))
}
