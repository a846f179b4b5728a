package chatbot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"AgentChat/internal/render"
	"AgentChat/internal/session"
)

const helpText = `Commands:
  /help                         Show this help
  /quit, /exit                  Exit
  /upload <path>                Upload a document to the knowledge base
  /new                          Start a new thread
  /threads [query]              List threads, optionally filtered
  /switch <n|id>                Switch to a thread
  /rename <n|id> <title>        Rename a thread
  /delete <n|id>                Delete a thread
  /sources                      Show sources of the last table answer
  /pick <n>                     Send a related question or card choice
  /state                        Show the conversation state

Agent team configuration:
  /agents                       Show the team being edited
  /agent add | rm <a> | set <a> <name|system_message> <value>
  /task add <a> | rm <a> <t> | set <a> <t> <name|description|endpoint|params_schema> <value>
  /param add <a> <t> | rm <a> <t> <name> | req <a> <t> <name> on|off
  /param rename <a> <t> <old> <new> | desc <a> <t> <name> <text>
  /config set <prompt|supervisor_system_message|max_turns> <value>
  /config load <file> | example | schema | save | launch | run-saved | run-combined
  /supervisor show | set <name|model|persona|role> <value> | save | run
  /quick list | add | set <n> <name|endpoint|params|description> <value> | rm <n> | run
  /team send <text> | step`

// handleCommand runs a slash command and reports whether to quit
func (cb *ChatBot) handleCommand(ctx context.Context, input string) (bool, error) {
	name, args := splitCommand(input)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		cb.println(helpText)
		cb.println()
		return false, nil

	case "/upload":
		return false, cb.cmdUpload(ctx, args)

	case "/new":
		t, err := cb.createThread(ctx)
		if err != nil {
			return false, err
		}
		return false, cb.switchTo(ctx, t.ID)

	case "/threads":
		cb.cmdThreads(strings.Join(args, " "))
		return false, nil

	case "/switch":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /switch <n|id>")
		}
		id, err := cb.resolveThread(args[0])
		if err != nil {
			return false, err
		}
		return false, cb.switchTo(ctx, id)

	case "/rename":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: /rename <n|id> <title>")
		}
		id, err := cb.resolveThread(args[0])
		if err != nil {
			return false, err
		}
		t, err := cb.threads.Rename(id, strings.Join(args[1:], " "))
		if err != nil {
			return false, err
		}
		cb.saveThread(ctx, t)
		cb.printf("Renamed %s to %q\n", t.ID, t.Title)
		return false, nil

	case "/delete":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /delete <n|id>")
		}
		id, err := cb.resolveThread(args[0])
		if err != nil {
			return false, err
		}
		if err := cb.deleteThread(ctx, id); err != nil {
			return false, err
		}
		cb.printf("Deleted thread %s\n", id)
		return false, nil

	case "/sources":
		cb.cmdSources()
		return false, nil

	case "/pick":
		return false, cb.cmdPick(ctx, args)

	case "/state":
		cb.printf("Thread: %s\nState: %s\nLoading: %t\nMessages: %d\n",
			cb.manager.Store().ThreadID(), cb.manager.State(), cb.manager.Loading(), cb.manager.Store().Len())
		return false, nil

	case "/agents":
		cb.printAgents()
		return false, nil
	case "/agent":
		return false, cb.cmdAgent(args)
	case "/task":
		return false, cb.cmdTask(args)
	case "/param":
		return false, cb.cmdParam(args)
	case "/config":
		return false, cb.cmdConfig(ctx, args)
	case "/supervisor":
		return false, cb.cmdSupervisor(ctx, args)
	case "/quick":
		return false, cb.cmdQuick(ctx, args)
	case "/team":
		return false, cb.cmdTeam(ctx, args)

	default:
		return false, fmt.Errorf("unknown command: %s (type /help)", name)
	}
}

func splitCommand(input string) (string, []string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (cb *ChatBot) cmdUpload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /upload <path>")
	}
	path := strings.Join(args, " ")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return cb.manager.Upload(ctx, filepath.Base(path), f)
}

func (cb *ChatBot) cmdThreads(query string) {
	threads := cb.threads.Search(query)
	if len(threads) == 0 {
		cb.println("No threads found")
		return
	}
	current := cb.manager.Store().ThreadID()
	all := cb.threads.All()
	for _, t := range threads {
		marker := " "
		if t.ID == current {
			marker = "*"
		}
		cb.printf("%s %d. %s  %s  (%d messages, %s)\n",
			marker, indexOf(all, t.ID)+1, t.Title, t.ID, t.MessageCount, t.Timestamp.Local().Format("2006-01-02 15:04"))
		if t.LastMessage != "" {
			cb.printf("     %s\n", t.LastMessage)
		}
	}
	cb.println()
}

// resolveThread accepts a 1-based position in the thread list, a full id
// or a unique id prefix
func (cb *ChatBot) resolveThread(ref string) (string, error) {
	all := cb.threads.All()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(all) {
			return "", fmt.Errorf("thread %d out of range (1-%d)", n, len(all))
		}
		return all[n-1].ID, nil
	}

	var match string
	for _, t := range all {
		if t.ID == ref {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("thread prefix %q is ambiguous", ref)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%s: %w", ref, session.ErrThreadNotFound)
	}
	return match, nil
}

func indexOf(threads []session.Thread, id string) int {
	for i, t := range threads {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (cb *ChatBot) cmdSources() {
	cb.mu.Lock()
	sources := append([]session.Citation(nil), cb.sources...)
	cb.mu.Unlock()

	if len(sources) == 0 {
		cb.println("No sources yet")
		return
	}
	cb.println("Sources:")
	for i, c := range sources {
		cb.printf("  %d. %s\n", i+1, c.URL)
	}
	cb.println()
}

func (cb *ChatBot) cmdPick(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /pick <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid choice %q", args[0])
	}

	cb.mu.Lock()
	v := cb.lastView
	cb.mu.Unlock()

	choices := render.Choices(v)
	if len(choices) == 0 {
		return fmt.Errorf("nothing to pick from")
	}
	if n >= 1 && n <= len(choices) {
		cb.println(render.FormatMessage(session.Message{Role: session.RoleUser}, render.PlainView{Text: choices[n-1]}))
	}
	return cb.manager.Pick(ctx, v, n)
}
