package adapter

import "context"

// Notifier is the port for templated transactional messages. Sends are
// best-effort: the reconciler logs failures and never propagates them.
type Notifier interface {
	Send(ctx context.Context, toEmail, toName, templateID string, vars map[string]string) error
}

// TemplateSet names the provider-side templates used for lifecycle
// notifications. Empty ids disable the corresponding send.
type TemplateSet struct {
	Welcome   string
	Upgrade   string
	Downgrade string
	Cancelled string
}
