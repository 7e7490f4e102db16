// Package shell runs the interactive menu that drives an in-process ledger.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jmerrifield20/blockledger/internal/chain"
	"github.com/pterm/pterm"
	"go.uber.org/zap"
)

// Menu choices.
const (
	ChoiceAdd    = "1"
	ChoiceVerify = "2"
	ChoiceShow   = "3"
	ChoiceQuit   = "q"
)

// Shell is a line-oriented menu loop over one ledger. It owns the ledger for
// the duration of Run.
type Shell struct {
	ledger *chain.Ledger
	in     *bufio.Scanner
	out    io.Writer
	logger *zap.Logger
}

// New creates a Shell reading choices from in and writing to out.
func New(l *chain.Ledger, in io.Reader, out io.Writer, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		ledger: l,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logger,
	}
}

// Run prints the genesis digest and serves the menu until the user quits,
// input ends, or ctx is cancelled. Only input read failures are returned.
func (s *Shell) Run(ctx context.Context) error {
	s.success("Genesis block has been generated.")
	s.info(fmt.Sprintf("Genesis block digest: %s", s.ledger.HeadDigest()))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		s.menu()
		line, ok, err := s.readLine()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		switch strings.ToLower(line) {
		case ChoiceAdd:
			if done, err := s.addBlock(); err != nil || done {
				return err
			}
		case ChoiceVerify:
			s.verify()
		case ChoiceShow:
			s.show()
		case ChoiceQuit, "quit", "exit":
			s.info(fmt.Sprintf("Ledger closed at %d blocks, head %s", s.ledger.Len(), s.ledger.HeadDigest()))
			return nil
		case "":
		default:
			s.fail(fmt.Sprintf("Unknown choice %q", line))
		}
	}
}

func (s *Shell) menu() {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Choices:")
	fmt.Fprintln(s.out, "1. Add a block")
	fmt.Fprintln(s.out, "2. Verify the ledger")
	fmt.Fprintln(s.out, "3. Show the ledger")
	fmt.Fprintln(s.out, "q. Quit")
}

// addBlock prompts for a payload and appends it. done reports end of input.
func (s *Shell) addBlock() (done bool, err error) {
	fmt.Fprintln(s.out, "Data of the block:")
	line, ok, err := s.readLine()
	if err != nil || !ok {
		return true, err
	}

	payload, err := chain.ParsePayload(line)
	if err != nil {
		s.fail(fmt.Sprintf("Block rejected: %v", err))
		return false, nil
	}
	res, err := s.ledger.Append(payload)
	if err != nil {
		s.fail(fmt.Sprintf("Block rejected: %v", err))
		return false, nil
	}

	s.logger.Debug("block appended", zap.Int("idx", res.Index), zap.String("digest", res.Digest))
	s.success("One block has been added to the ledger.")
	s.info(fmt.Sprintf("Previous block digest: %s", res.Previous))
	s.info(fmt.Sprintf("Current block digest: %s", res.Digest))
	return false, nil
}

func (s *Shell) verify() {
	err := s.ledger.Check()
	if err == nil {
		s.success(fmt.Sprintf("Ledger verified: %d blocks intact", s.ledger.Len()))
		return
	}
	s.logger.Warn("ledger integrity check failed", zap.Error(err))
	s.fail(fmt.Sprintf("Ledger verification failed: %v", err))
}

func (s *Shell) show() {
	data := pterm.TableData{{"#", "Timestamp", "Payload", "Previous", "Digest"}}
	for i, b := range s.ledger.Blocks() {
		prev := b.PreviousDigest
		if prev == "" {
			prev = "-"
		}
		data = append(data, []string{
			strconv.Itoa(i),
			strconv.FormatInt(b.Content.Timestamp, 10),
			strconv.FormatInt(int64(b.Content.Payload), 10),
			prev,
			b.Digest,
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		s.fail(fmt.Sprintf("render ledger: %v", err))
		return
	}
	fmt.Fprintln(s.out, table)
}

// readLine returns the next trimmed input line; ok is false at end of input.
func (s *Shell) readLine() (line string, ok bool, err error) {
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", false, fmt.Errorf("read input: %w", err)
		}
		return "", false, nil
	}
	return strings.TrimSpace(s.in.Text()), true, nil
}

func (s *Shell) info(msg string)    { fmt.Fprint(s.out, pterm.Info.Sprintln(msg)) }
func (s *Shell) success(msg string) { fmt.Fprint(s.out, pterm.Success.Sprintln(msg)) }
func (s *Shell) fail(msg string)    { fmt.Fprint(s.out, pterm.Error.Sprintln(msg)) }
