package toolkit

import (
	"context"
	"encoding/json"

	"github.com/loomworks/loom/runtime/workflow/mail"
)

// EmailTool sends an email through the sub-node's stored SMTP endpoint. The
// model supplies recipient, subject, and body; the endpoint itself is fixed
// by configuration.
func EmailTool(sender mail.Sender, cfg mail.Config) Tool {
	return Tool{
		Name:        "send_email",
		Description: "Send an email to a recipient.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"to": {"type": "string", "description": "Recipient email address"},
				"subject": {"type": "string"},
				"body": {"type": "string"}
			},
			"required": ["to", "subject", "body"],
			"additionalProperties": false
		}`),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			msg := mail.Message{
				To:      argString(args, "to", ""),
				Subject: argString(args, "subject", ""),
				Body:    argString(args, "body", ""),
			}
			if err := sender.Send(ctx, cfg, msg); err != nil {
				return "", &ToolError{Tool: "send_email", Message: "cannot send email", Cause: err}
			}
			return "Email sent to " + msg.To, nil
		},
	}
}
