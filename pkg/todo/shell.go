package todo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/srediag/todo-shm/api"
	"github.com/srediag/todo-shm/internal/logging"
)

const (
	promptCommand     = "Enter command (add, complete, view, exit): "
	promptDescription = "Enter description: "
	promptItem        = "Enter item number to complete: "
)

// Shell is the interactive command loop shared by the server and client
// commands. Item numbers are 1-based on screen.
type Shell struct {
	list    api.TodoList
	in      *bufio.Reader
	out     io.Writer
	logger  *logging.Logger
	readErr error
}

// NewShell reads commands from in and writes prompts and results to out.
func NewShell(list api.TodoList, in io.Reader, out io.Writer, logger *logging.Logger) *Shell {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Shell{list: list, in: bufio.NewReader(in), out: out, logger: logger}
}

// Run processes commands until exit, end of input or ctx is done. It returns
// an error only when the list became unusable or input failed.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, ok := s.prompt(promptCommand)
		if !ok {
			return s.readErr
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)

		var err error
		switch cmd {
		case "":
			continue
		case "add":
			err = s.add(ctx, arg)
		case "complete":
			err = s.complete(ctx, arg)
		case "view":
			err = s.view(ctx)
		case "exit":
			return nil
		default:
			s.println("Invalid command.")
			continue
		}
		if errors.Is(err, errEndOfInput) {
			return s.readErr
		}
		if err != nil {
			s.println(Message(err))
			if fatal(err) {
				return err
			}
		}
	}
}

var errEndOfInput = errors.New("end of input")

func (s *Shell) add(ctx context.Context, description string) error {
	if description == "" {
		line, ok := s.prompt(promptDescription)
		if !ok {
			return errEndOfInput
		}
		description = line
	}
	idx, err := s.list.Add(ctx, description)
	if err != nil {
		return err
	}
	s.logger.Debug("shell add", zap.Int("index", idx))
	s.println(fmt.Sprintf("Added item %d.", idx+1))
	return nil
}

func (s *Shell) complete(ctx context.Context, arg string) error {
	if arg == "" {
		line, ok := s.prompt(promptItem)
		if !ok {
			return errEndOfInput
		}
		arg = strings.TrimSpace(line)
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		s.println("Invalid item number.")
		return nil
	}
	if err := s.list.Complete(ctx, n-1); err != nil {
		return err
	}
	s.println(fmt.Sprintf("Completed item %d.", n))
	return nil
}

func (s *Shell) view(ctx context.Context) error {
	records, err := s.list.List(ctx)
	if err != nil {
		return err
	}
	return Render(s.out, records)
}

func (s *Shell) prompt(text string) (string, bool) {
	_, _ = io.WriteString(s.out, text)
	line, err := s.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.readErr = err
		}
		if line == "" {
			return "", false
		}
	}
	return strings.TrimRight(line, "\r\n"), true
}

func (s *Shell) println(text string) {
	_, _ = fmt.Fprintln(s.out, text)
}
