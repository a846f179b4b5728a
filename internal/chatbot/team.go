package chatbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"AgentChat/internal/agentconfig"
	"AgentChat/internal/backend"
)

func (cb *ChatBot) printAgents() {
	p := cb.builder.Profile()
	cb.printf("Prompt: %s\n", orNone(p.Prompt))
	cb.printf("Supervisor system message: %s\n", orNone(p.SupervisorSystemMessage))
	cb.printf("Max turns: %d\n", p.MaxTurns)
	for ai, a := range cb.builder.Agents() {
		cb.printf("Agent %d: %s\n", ai+1, orNone(a.Name))
		cb.printf("  System message: %s\n", orNone(a.SystemMessage))
		for ti, t := range a.Tasks {
			cb.printf("  Task %d: %s  %s\n", ti+1, orNone(t.Name), t.Endpoint)
			if t.Description != "" {
				cb.printf("    %s\n", t.Description)
			}
			params, err := cb.builder.Parameters(a.ID, t.ID)
			if err != nil {
				cb.printf("    params_schema: %s\n", strings.ReplaceAll(t.ParamsSchema, "\n", " "))
				continue
			}
			for _, prm := range params {
				req := ""
				if prm.Required {
					req = " (required)"
				}
				cb.printf("    - %s: %s%s %s\n", prm.Name, prm.Type, req, prm.Description)
			}
		}
	}
	cb.println()
}

func (cb *ChatBot) cmdAgent(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /agent add | rm <a> | set <a> <field> <value>")
	}
	switch args[0] {
	case "add":
		cb.builder.AddAgent()
		cb.printf("Added agent %d\n", len(cb.builder.Agents()))
		return nil
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: /agent rm <a>")
		}
		id, err := cb.agentID(args[1])
		if err != nil {
			return err
		}
		before := len(cb.builder.Agents())
		if err := cb.builder.RemoveAgent(id); err != nil {
			return err
		}
		if len(cb.builder.Agents()) == before {
			cb.println("A team needs at least one agent")
			return nil
		}
		cb.println("Removed agent")
		return nil
	case "set":
		if len(args) < 3 {
			return fmt.Errorf("usage: /agent set <a> <name|system_message> <value>")
		}
		id, err := cb.agentID(args[1])
		if err != nil {
			return err
		}
		return cb.builder.UpdateAgent(id, args[2], strings.Join(args[3:], " "))
	default:
		return fmt.Errorf("unknown /agent subcommand: %s", args[0])
	}
}

func (cb *ChatBot) cmdTask(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: /task add <a> | rm <a> <t> | set <a> <t> <field> <value>")
	}
	agentID, err := cb.agentID(args[1])
	if err != nil {
		return err
	}
	switch args[0] {
	case "add":
		if _, err := cb.builder.AddTask(agentID); err != nil {
			return err
		}
		cb.println("Added task")
		return nil
	case "rm":
		if len(args) != 3 {
			return fmt.Errorf("usage: /task rm <a> <t>")
		}
		taskID, err := cb.taskID(agentID, args[2])
		if err != nil {
			return err
		}
		return cb.builder.RemoveTask(agentID, taskID)
	case "set":
		if len(args) < 4 {
			return fmt.Errorf("usage: /task set <a> <t> <field> <value>")
		}
		taskID, err := cb.taskID(agentID, args[2])
		if err != nil {
			return err
		}
		return cb.builder.UpdateTask(agentID, taskID, args[3], strings.Join(args[4:], " "))
	default:
		return fmt.Errorf("unknown /task subcommand: %s", args[0])
	}
}

func (cb *ChatBot) cmdParam(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: /param add|rm|req|rename|desc <a> <t> ...")
	}
	agentID, err := cb.agentID(args[1])
	if err != nil {
		return err
	}
	taskID, err := cb.taskID(agentID, args[2])
	if err != nil {
		return err
	}
	rest := args[3:]

	switch args[0] {
	case "add":
		name, err := cb.builder.AddParameter(agentID, taskID)
		if err != nil {
			return err
		}
		cb.printf("Added parameter %s\n", name)
		return nil
	case "rm":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /param rm <a> <t> <name>")
		}
		return cb.builder.RemoveParameter(agentID, taskID, rest[0])
	case "req":
		if len(rest) != 2 {
			return fmt.Errorf("usage: /param req <a> <t> <name> on|off")
		}
		return cb.builder.SetParameterRequired(agentID, taskID, rest[0], rest[1] == "on")
	case "rename":
		if len(rest) != 2 {
			return fmt.Errorf("usage: /param rename <a> <t> <old> <new>")
		}
		return cb.builder.RenameParameter(agentID, taskID, rest[0], rest[1])
	case "desc":
		if len(rest) < 1 {
			return fmt.Errorf("usage: /param desc <a> <t> <name> <text>")
		}
		return cb.builder.SetParameterDescription(agentID, taskID, rest[0], strings.Join(rest[1:], " "))
	default:
		return fmt.Errorf("unknown /param subcommand: %s", args[0])
	}
}

func (cb *ChatBot) cmdConfig(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /config set|load|example|schema|save|launch|run-saved|run-combined")
	}
	switch args[0] {
	case "set":
		if len(args) < 3 {
			return fmt.Errorf("usage: /config set <field> <value>")
		}
		return cb.builder.SetProfile(args[1], strings.Join(args[2:], " "))
	case "load":
		if len(args) < 2 {
			return fmt.Errorf("usage: /config load <file>")
		}
		cfg, err := agentconfig.LoadFile(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if err := cb.builder.Replace(cfg); err != nil {
			return err
		}
		cb.println("Configuration loaded.")
		cb.printAgents()
		return nil
	case "example":
		if err := cb.service.LoadExample(ctx, cb.builder); err != nil {
			return err
		}
		cb.println("Example loaded.")
		cb.printAgents()
		return nil
	case "schema":
		data, err := agentconfig.FileSchema()
		if err != nil {
			return err
		}
		cb.println(string(data))
		return nil
	case "save":
		msg, err := cb.service.Save(ctx, cb.builder)
		if err != nil {
			return err
		}
		cb.println(msg)
		return nil
	case "launch":
		if err := cb.service.Launch(ctx, cb.builder, cb.team); err != nil {
			return err
		}
		cb.printf("Team chat %s started. Use /team send <text> or /team step.\n", cb.team.ID())
		cb.printTeam(cb.team.Messages())
		return nil
	case "run-saved":
		resp, err := cb.service.RunSaved(ctx)
		if err != nil {
			return err
		}
		cb.printRun(resp)
		return nil
	case "run-combined":
		resp, err := cb.service.RunCombined(ctx)
		if err != nil {
			return err
		}
		cb.printRun(resp)
		return nil
	default:
		return fmt.Errorf("unknown /config subcommand: %s", args[0])
	}
}

func (cb *ChatBot) cmdSupervisor(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "show" {
		p := cb.supervisor
		cb.printf("Name: %s\nModel: %s\nPersona: %s\nRole: %s\nPersonas:\n", p.Name, p.Model, p.Persona, p.Role)
		for _, persona := range agentconfig.Personas {
			cb.printf("  %s - %s (%s)\n", persona.Key, persona.Title, persona.Description)
		}
		cb.println()
		return nil
	}
	switch args[0] {
	case "set":
		if len(args) < 3 {
			return fmt.Errorf("usage: /supervisor set <name|model|persona|role> <value>")
		}
		return cb.supervisor.Set(args[1], strings.Join(args[2:], " "))
	case "save":
		msg, err := cb.service.SaveSupervisor(ctx, cb.supervisor, cb.builder.Profile().Prompt)
		if err != nil {
			return err
		}
		cb.println(msg)
		return nil
	case "run":
		resp, err := cb.service.RunSupervisorProfile(ctx)
		if err != nil {
			return err
		}
		cb.printRun(resp)
		return nil
	default:
		return fmt.Errorf("unknown /supervisor subcommand: %s", args[0])
	}
}

func (cb *ChatBot) cmdQuick(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		tasks := cb.panel.Tasks()
		if len(tasks) == 0 {
			cb.println("No tasks created yet")
			return nil
		}
		for i, t := range tasks {
			cb.printf("%d. %s  %s  params=%s\n   %s\n", i+1, orNone(t.Name), t.Endpoint, t.Params, t.Description)
		}
		cb.println()
		return nil
	}
	switch args[0] {
	case "add":
		cb.panel.Add()
		cb.printf("Added quick task %d\n", len(cb.panel.Tasks()))
		return nil
	case "set":
		if len(args) < 3 {
			return fmt.Errorf("usage: /quick set <n> <field> <value>")
		}
		id, err := cb.quickID(args[1])
		if err != nil {
			return err
		}
		return cb.panel.Update(id, args[2], strings.Join(args[3:], " "))
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: /quick rm <n>")
		}
		id, err := cb.quickID(args[1])
		if err != nil {
			return err
		}
		return cb.panel.Remove(id)
	case "run":
		result, err := cb.service.RunAgent(ctx, cb.panel)
		if err != nil {
			return err
		}
		cb.println("Agent executed successfully!")
		for k, v := range result {
			cb.printf("  %s: %v\n", k, v)
		}
		cb.println()
		return nil
	default:
		return fmt.Errorf("unknown /quick subcommand: %s", args[0])
	}
}

func (cb *ChatBot) cmdTeam(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /team send <text> | step")
	}
	switch args[0] {
	case "send":
		added, unsent, err := cb.team.Send(ctx, strings.Join(args[1:], " "))
		if err != nil {
			if unsent != "" {
				cb.printf("Not sent: %s\n", unsent)
			}
			return err
		}
		cb.printTeam(added)
		return nil
	case "step":
		added, err := cb.team.Step(ctx)
		if err != nil {
			return err
		}
		cb.printTeam(added)
		return nil
	default:
		return fmt.Errorf("unknown /team subcommand: %s", args[0])
	}
}

func (cb *ChatBot) printTeam(msgs []backend.TeamMessage) {
	for _, m := range msgs {
		sender := m.Sender
		if sender == "" {
			sender = m.Role
		}
		cb.printf("%s: %s\n", sender, m.Body())
	}
	cb.println()
}

func (cb *ChatBot) printRun(resp backend.RunResponse) {
	cb.printTeam(resp.ChatHistory)
	if resp.Response != "" {
		cb.printf("Response: %s\n\n", resp.Response)
	}
}

func (cb *ChatBot) agentID(ref string) (string, error) {
	agents := cb.builder.Agents()
	n, err := position(ref, len(agents), "agent")
	if err != nil {
		return "", err
	}
	return agents[n].ID, nil
}

func (cb *ChatBot) taskID(agentID, ref string) (string, error) {
	for _, a := range cb.builder.Agents() {
		if a.ID != agentID {
			continue
		}
		n, err := position(ref, len(a.Tasks), "task")
		if err != nil {
			return "", err
		}
		return a.Tasks[n].ID, nil
	}
	return "", fmt.Errorf("agent %s: %w", agentID, agentconfig.ErrNotFound)
}

func (cb *ChatBot) quickID(ref string) (string, error) {
	tasks := cb.panel.Tasks()
	n, err := position(ref, len(tasks), "quick task")
	if err != nil {
		return "", err
	}
	return tasks[n].ID, nil
}

// position turns a 1-based reference into a 0-based index
func position(ref string, count int, what string) (int, error) {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid %s number %q", what, ref)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("%s %d out of range (1-%d)", what, n, count)
	}
	return n - 1, nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
