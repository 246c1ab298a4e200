// Package command runs print requests and the text command system built on them
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/thereceipt/printbridge/internal/registry"
)

// ProfileRegistry is the profile store as seen by the command system
type ProfileRegistry interface {
	ProfileStore
	List(ctx context.Context) ([]registry.Profile, error)
	Create(ctx context.Context, p registry.Profile) (registry.Profile, error)
	Update(ctx context.Context, id uint, patch registry.Patch) (registry.Profile, error)
	Delete(ctx context.Context, id uint) error
	SetDefault(ctx context.Context, id uint) (registry.Profile, error)
}

// Executor executes commands
type Executor struct {
	profiles     ProfileRegistry
	orchestrator *Orchestrator
}

// NewExecutor creates a new command executor
func NewExecutor(profiles ProfileRegistry, orchestrator *Orchestrator) *Executor {
	return &Executor{
		profiles:     profiles,
		orchestrator: orchestrator,
	}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(ctx context.Context, cmdStr string) *Result {
	// Parse command
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return failure("empty command")
	}

	command := parts[0]
	args := parts[1:]

	// Route to appropriate handler
	switch command {
	case "print":
		return e.handlePrint(ctx, args)
	case "printer":
		return e.handlePrinter(ctx, args)
	case "job":
		return e.handleJob(args)
	case "help":
		return e.handleHelp()
	default:
		return failure("unknown command: %s. Type 'help' for available commands", command)
	}
}

// parseCommand parses a command string into parts, handling quoted strings
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := byte(0)

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		if char == '"' || char == '\'' {
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(char)
			}
		} else if char == ' ' && !inQuotes {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
