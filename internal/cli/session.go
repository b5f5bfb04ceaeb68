package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/presentation/tui"
	"github.com/docweave/docweave/pkg/adapters/static"
	"github.com/docweave/docweave/pkg/bridge"
	"github.com/docweave/docweave/pkg/domain"
	"github.com/docweave/docweave/pkg/ports"
)

// RunSession processes one document interactively: it opens a session,
// mirrors the event stream to the terminal and answers approval requests
// from stdin (or from a fixed policy with --auto-approve).
func RunSession(ctx context.Context, opts RunOptions) error {
	logger := createLogger(opts.Debug)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if interactive && !opts.AutoApprove {
		tui.PrintBanner()
	}

	wf, err := NewWorkflow(cfg, logger)
	if err != nil {
		return fmt.Errorf("error initializing workflow: %w", err)
	}

	sessionID, err := wf.Start(ctx, opts.DocumentURI)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	events, err := wf.Events(sessionID)
	if err != nil {
		return err
	}

	var policy ports.DecisionPolicy
	if opts.AutoApprove {
		policy = static.NewPolicy(true, opts.AutoComment)
	}

	render := tui.NewRenderer()
	reader := bufio.NewReader(os.Stdin)

	for rec := range events {
		switch rec.Type {
		case bridge.RecordWorkflowStarted:
			fmt.Printf("Processing %v (session %s)\n", rec.Data["document_uri"], sessionID)

		case bridge.RecordProgress:
			fmt.Printf("  %v: %v\n", rec.Data["phase"], rec.Data["status"])

		case bridge.RecordApprovalRequired:
			decision, err := decide(ctx, rec, policy, reader, render, interactive)
			if err != nil {
				return err
			}
			if err := wf.Bridge().SubmitAnswer(sessionID, decision); err != nil {
				return fmt.Errorf("failed to submit decision: %w", err)
			}

		case bridge.RecordHITLStatus:
			fmt.Printf("  review: %v\n", rec.Data["status"])

		case bridge.RecordWorkflowCompleted:
			printResult(rec.Data["result"])
			return nil

		case bridge.RecordError:
			msg, _ := rec.Data["message"].(string)
			return fmt.Errorf("workflow failed: %s", msg)
		}
	}

	return fmt.Errorf("event stream ended without a terminal record")
}

// decide answers one approval request, either via the fixed policy or by
// prompting the operator.
func decide(ctx context.Context, rec bridge.Record, policy ports.DecisionPolicy, reader *bufio.Reader, render func(string) (string, error), interactive bool) (domain.ApprovalDecision, error) {
	requestID, _ := rec.Data["request_id"].(string)
	title, _ := rec.Data["title"].(string)
	message, _ := rec.Data["message"].(string)
	reqContext, _ := rec.Data["context"].(map[string]any)

	if policy != nil {
		return policy.Decide(ctx, domain.ApprovalRequest{
			ID:      requestID,
			Title:   title,
			Message: message,
			Context: reqContext,
		})
	}

	printRequest(title, message, reqContext, render, interactive)

	fmt.Print("Approve? [y/N] ")
	answer, err := reader.ReadString('\n')
	if err != nil {
		return domain.ApprovalDecision{}, fmt.Errorf("failed to read decision: %w", err)
	}
	approved := strings.EqualFold(strings.TrimSpace(answer), "y")

	fmt.Print("Comment (optional): ")
	comment, err := reader.ReadString('\n')
	if err != nil {
		return domain.ApprovalDecision{}, fmt.Errorf("failed to read comment: %w", err)
	}

	return domain.ApprovalDecision{
		RequestID: requestID,
		Approved:  approved,
		Comment:   strings.TrimSpace(comment),
	}, nil
}

func printRequest(title, message string, reqContext map[string]any, render func(string) (string, error), interactive bool) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n%s\n", title, message)
	if uri, ok := reqContext["source_uri"].(string); ok && uri != "" {
		fmt.Fprintf(&md, "\n**Document:** %s\n", uri)
	}
	if notes, ok := reqContext["notes"].(string); ok && notes != "" {
		fmt.Fprintf(&md, "\n**Notes:** %s\n", notes)
	}
	if preview, ok := reqContext["preview"].(string); ok && preview != "" {
		fmt.Fprintf(&md, "\n---\n\n%s\n", preview)
	}

	if interactive {
		if out, err := render(md.String()); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(md.String())
}

func printResult(result any) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("Done: %v\n", result)
		return
	}
	fmt.Printf("Done:\n%s\n", data)
}
