package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rickchristie/agentcore/checkpoint"
)

// approvalPrompt asks at the terminal whether a pending checkpoint may proceed.
//
// Notify blocks until the question is answered. Install it behind a
// checkpoint.QueuedNotifier so the manager's timeout keeps running while the user
// thinks and questions are asked one at a time.
type approvalPrompt struct {
	rl      *readline.Instance
	manager *checkpoint.Manager
}

func (p *approvalPrompt) Notify(ctx context.Context, rec checkpoint.Record) {
	w := p.rl.Stdout()
	fmt.Fprintf(w, "\n--- checkpoint %q (%s) ---\n", rec.Name, rec.ID)
	if draft, ok := rec.Data["draft"]; ok {
		fmt.Fprintf(w, "%v\n", draft)
	}
	fmt.Fprintln(w, "approve? [y]es / anything else is a rejection reason")

	p.rl.SetPrompt("approve> ")
	defer p.rl.SetPrompt("> ")

	line, err := p.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		line = "interrupted at prompt"
	case err != nil:
		line = "no answer: " + err.Error()
	}

	answer := strings.TrimSpace(line)
	if strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes") {
		err = p.manager.Approve(ctx, rec.ID, "approved at terminal")
	} else {
		if answer == "" {
			answer = "rejected at terminal"
		}
		err = p.manager.Reject(ctx, rec.ID, answer)
	}
	if errors.Is(err, checkpoint.ErrNotPending) {
		fmt.Fprintln(w, "checkpoint was already resolved")
		return
	}
	if err != nil {
		fmt.Fprintf(w, "could not record decision: %v\n", err)
	}
}

var _ checkpoint.Notifier = (*approvalPrompt)(nil)
