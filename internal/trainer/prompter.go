package trainer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter is the console dialogue. Ask returns io.EOF once input is gone.
type Prompter interface {
	Ask(prompt string) (string, error)
	Say(msg string)
}

type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

func (p *ConsolePrompter) Ask(prompt string) (string, error) {
	if _, err := io.WriteString(p.out, prompt); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil {
		if err == io.EOF && line != "" {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

func (p *ConsolePrompter) Say(msg string) {
	fmt.Fprintln(p.out, msg)
}
