package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout = 4 * time.Second
	drainTimeout        = 2 * time.Second
	mateValue           = 30000
)

var (
	ErrNoCandidates = errors.New("engine returned no lines")
	// ErrUnresponsive is returned once a read timed out; the engine output
	// can no longer be trusted to belong to the next command.
	ErrUnresponsive = errors.New("engine unresponsive")
)

type Options struct {
	Threads int
	HashMB  int
	MultiPV int
}

// Line is one ranked principal variation. ScoreCP is oriented to White;
// Mate is non-zero when the engine reported a forced mate (also White
// oriented: positive means White mates).
type Line struct {
	Rank    int
	Depth   int
	ScoreCP int
	Mate    int
	PV      []string
}

type AnalyseRequest struct {
	FEN   string
	Depth int
	Lines int
}

type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *zap.Logger

	// stdout is read only by pump; readers take lines from the channel.
	lines    chan string
	readDone chan struct{}
	readErr  error
	done     chan struct{}

	mu        sync.Mutex
	search    sync.Mutex
	closeOnce sync.Once
	closeErr  error
	multiPV   int
	failed    error
}

// NewSession starts the engine binary and completes the uci handshake.
func NewSession(ctx context.Context, binaryPath string, opt Options, logger *zap.Logger) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:      cmd,
		stdin:    stdin,
		logger:   logger,
		lines:    make(chan string, 64),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
		multiPV:  opt.MultiPV,
	}
	go s.pump(bufio.NewReader(stdoutPipe))

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Analyse runs a fixed-depth multi-PV search and returns the lines ordered by
// engine rank, best first.
func (s *Session) Analyse(ctx context.Context, req AnalyseRequest) ([]Line, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.failure(); err != nil {
		return nil, err
	}
	if req.Depth <= 0 {
		return nil, fmt.Errorf("depth must be > 0: %d", req.Depth)
	}
	if req.Lines <= 0 {
		req.Lines = 1
	}
	if req.Lines != s.multiPV {
		if err := s.send(fmt.Sprintf("setoption name MultiPV value %d\n", req.Lines)); err != nil {
			return nil, fmt.Errorf("set multipv: %w", err)
		}
		s.multiPV = req.Lines
	}
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}

	if err := s.send(buildPositionCommand(req.FEN)); err != nil {
		return nil, fmt.Errorf("send position: %w", err)
	}
	goCmd := "go depth " + strconv.Itoa(req.Depth)
	if err := s.send(goCmd + "\n"); err != nil {
		return nil, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(req.Depth))
	defer cancel()

	blackToMove := sideToMoveIsBlack(req.FEN)
	lines := make(map[int]Line)
	for {
		raw, err := s.readLine(searchCtx)
		if err != nil {
			s.logger.Warn("uci_read_failed",
				zap.String("fen", req.FEN),
				zap.String("go", goCmd),
				zap.Error(err),
			)
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				_ = s.send("stop\n")
			}
			return nil, fmt.Errorf("read line: %w", err)
		}
		if raw == "" {
			continue
		}

		switch {
		case strings.HasPrefix(raw, "info "):
			if line, ok := parseInfo(raw); ok {
				if blackToMove {
					line.ScoreCP = -line.ScoreCP
					line.Mate = -line.Mate
				}
				lines[line.Rank] = line
			}
		case strings.HasPrefix(raw, "bestmove"):
			out := collapseLines(lines, req.Lines)
			if len(out) == 0 {
				return nil, ErrNoCandidates
			}
			return out, nil
		}
	}
}

func buildPositionCommand(fen string) string {
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		return "position startpos\n"
	}
	return "position fen " + strings.TrimSpace(fen) + "\n"
}

func sideToMoveIsBlack(fen string) bool {
	fields := strings.Fields(fen)
	return len(fields) > 1 && fields[1] == "b"
}

func validateOptions(opt Options) error {
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	if opt.MultiPV <= 0 {
		return fmt.Errorf("multipv must be > 0: %d", opt.MultiPV)
	}
	return nil
}

func computeSearchTimeout(depth int) time.Duration {
	base := time.Duration(depth) * 2 * time.Second
	if base < 10*time.Second {
		base = 10 * time.Second
	}
	if base > 2*time.Minute {
		base = 2 * time.Minute
	}
	return base
}

// parseInfo reads one "info" line. Lines without a pv (currmove, string,
// hashfull reports) are ignored.
func parseInfo(raw string) (Line, bool) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return Line{}, false
	}
	line := Line{Rank: 1}
	pvIdx := -1

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					line.Depth = v
				}
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					line.Rank = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				kind := parts[i+1]
				val := parts[i+2]
				switch kind {
				case "cp":
					if v, err := strconv.Atoi(val); err == nil {
						line.ScoreCP = v
					}
				case "mate":
					if v, err := strconv.Atoi(val); err == nil {
						line.Mate = v
						if v > 0 {
							line.ScoreCP = mateValue
						} else {
							line.ScoreCP = -mateValue
						}
					}
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) {
		return Line{}, false
	}
	line.PV = append([]string(nil), parts[pvIdx:]...)
	return line, true
}

func collapseLines(m map[int]Line, limit int) []Line {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Line, 0, len(keys))
	for _, k := range keys {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m[k])
	}
	return out
}

func (s *Session) ensureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// Close stops the engine process. Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.stdin != nil {
			_, _ = io.WriteString(s.stdin, "quit\n")
			s.stdin.Close()
		}
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		close(s.done)
		if s.readDone != nil {
			// Wait closes stdout; let pump finish its read first
			select {
			case <-s.readDone:
			case <-time.After(drainTimeout):
			}
		}
		if s.cmd != nil {
			s.closeErr = s.cmd.Wait()
		}
	})
	return s.closeErr
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	if err := s.applyOptions(opt); err != nil {
		return err
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions(opt Options) error {
	threadCount := opt.Threads
	if threadCount <= 0 {
		threadCount = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threadCount),
		fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB),
		fmt.Sprintf("setoption name MultiPV value %d\n", opt.MultiPV),
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) pump(r *bufio.Reader) {
	defer close(s.readDone)
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" || err == nil {
			select {
			case s.lines <- line:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

// readLine returns the next engine line. A context expiry marks the session
// unresponsive, so later commands fail fast instead of reading stale output.
func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case line := <-s.lines:
		return line, nil
	default:
	}
	select {
	case <-ctx.Done():
		s.markFailed(ctx.Err())
		return "", ctx.Err()
	case line := <-s.lines:
		return line, nil
	case <-s.readDone:
		select {
		case line := <-s.lines:
			return line, nil
		default:
		}
		if s.readErr != nil {
			return "", s.readErr
		}
		return "", io.EOF
	}
}

func (s *Session) markFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = fmt.Errorf("%w: %v", ErrUnresponsive, err)
	}
}

func (s *Session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
