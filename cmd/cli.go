package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/twitoff/internal/models"
	"github.com/xhad/twitoff/pkg/ingest"
)

var errUsage = errors.New("usage")

type command struct {
	name string
	args []string
	text string
}

// parseCommand splits a prompt line. For compare, everything after the two
// names is the text, kept verbatim.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}
	cmd := command{name: strings.ToLower(fields[0]), args: fields[1:]}

	switch cmd.name {
	case "add":
		if len(cmd.args) == 0 {
			return cmd, fmt.Errorf("%w: add <name> [name...]", errUsage)
		}
	case "compare":
		if len(cmd.args) < 3 {
			return cmd, fmt.Errorf("%w: compare <name> <name> <text>", errUsage)
		}
		// skip the command and both names
		rest := line
		for i := 0; i < 3; i++ {
			rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
			end := strings.IndexFunc(rest, unicode.IsSpace)
			if end < 0 {
				return cmd, fmt.Errorf("%w: compare <name> <name> <text>", errUsage)
			}
			rest = rest[end:]
		}
		cmd.args = cmd.args[:2]
		cmd.text = strings.TrimSpace(rest)
	case "update", "authors", "reset", "help", "exit", "quit":
	default:
		return cmd, fmt.Errorf("unknown command %q (try help)", cmd.name)
	}
	return cmd, nil
}

type cli struct {
	app     *app
	scanner *bufio.Scanner
	prompt  func(format string, a ...interface{})
	result  func(format string, a ...interface{})
}

func newCLI(a *app, in io.Reader) *cli {
	return &cli{
		app:     a,
		scanner: bufio.NewScanner(in),
		prompt:  color.New(color.FgGreen).PrintfFunc(),
		result:  color.New(color.FgCyan).PrintfFunc(),
	}
}

func (c *cli) loop(ctx context.Context) error {
	color.Cyan("\nWho said it? Type 'help' for commands, 'exit' to quit")

	for {
		c.prompt("\ntwitoff> ")
		if !c.scanner.Scan() {
			return c.scanner.Err()
		}

		cmd, err := parseCommand(c.scanner.Text())
		if err != nil {
			color.Red("%v\n", err)
			continue
		}

		switch cmd.name {
		case "":
		case "exit", "quit":
			return nil
		case "help":
			printHelp()
		case "add":
			if err := addWithProgress(ctx, c.app.ingestor, cmd.args); err != nil {
				color.Red("Error: %v\n", err)
			}
		case "update":
			c.update(ctx)
		case "authors":
			c.authors(ctx)
		case "reset":
			if err := c.app.store.Reset(ctx); err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			color.Green("✓ All authors removed\n")
		case "compare":
			c.compare(ctx, cmd.args[0], cmd.args[1], cmd.text)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *cli) compare(ctx context.Context, nameA, nameB, text string) {
	spinner := getSpinner("🔍 Fitting classifier...")
	pred, err := c.app.predictor.Predict(ctx, nameA, nameB, text)
	_ = spinner.Finish()
	fmt.Print("\r")

	if err != nil {
		switch {
		case errors.Is(err, models.ErrAuthorNotFound):
			color.Red("Unknown author, add them first: %v\n", err)
		case errors.Is(err, models.ErrSingleClass):
			color.Red("Not enough posts to compare: %v\n", err)
		default:
			color.Red("Error: %v\n", err)
		}
		return
	}
	c.result("%s (p=%.2f)\n", pred.Message(), pred.Probability)
}

func (c *cli) update(ctx context.Context) {
	authors, err := c.app.store.ListAuthors(ctx)
	if err != nil {
		color.Red("Error: %v\n", err)
		return
	}
	bar := getProgressBar(len(authors), "🔄 Updating authors...")
	total, err := c.app.ingestor.UpdateAll(ctx, func(name string, added int) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		color.Red("\nError: %v\n", err)
		return
	}
	color.Green("\n✓ Added %d new posts across %d authors\n", total, len(authors))
}

func (c *cli) authors(ctx context.Context) {
	authors, err := c.app.store.ListAuthors(ctx)
	if err != nil {
		color.Red("Error: %v\n", err)
		return
	}
	if len(authors) == 0 {
		color.Yellow("No authors yet, try: add NASA elonmusk\n")
		return
	}
	for _, a := range authors {
		c.result("  %s\n", a.Name)
	}
}

func addWithProgress(ctx context.Context, ing *ingest.Ingestor, names []string) error {
	bar := getProgressBar(len(names), "📥 Fetching timelines...")
	total, err := ing.AddAll(ctx, names, func(name string, added int) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	color.Green("\n✓ Added %d new posts\n", total)
	return nil
}

func printHelp() {
	fmt.Println(`Commands:
  add <name> [name...]          fetch and store timelines
  update                        fetch new posts for every stored author
  compare <name> <name> <text>  who is more likely to have said text
  authors                       list stored authors
  reset                         remove all authors
  exit                          quit`)
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("authors"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
