package main

import (
	"fmt"
	"strconv"
	"strings"
)

// command is one parsed shell line: either a dot-command or a bare SQL
// statement passed straight through to Namespace.Select.
type command struct {
	Name string
	Args []string
	Line string
}

func parseLine(line string) (*command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(line, ".") {
		return &command{Name: ".select", Args: []string{line}, Line: line}, nil
	}

	parts := strings.Fields(line)
	return &command{Name: parts[0], Args: parts[1:], Line: line}, nil
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func validateArgs(cmd *command, count int) error {
	if len(cmd.Args) < count {
		return fmt.Errorf("expected %d argument(s), got %d", count, len(cmd.Args))
	}
	return nil
}
