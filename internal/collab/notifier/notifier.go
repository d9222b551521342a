// Package notifier is the port to the transactional email dispatcher.
// Fire-and-forget from the privacy core's perspective: failures are logged,
// never fatal to a pipeline.
package notifier

import (
	"context"
	"sync"
)

// Template names the notifier knows how to render.
const (
	TemplateExportReady      = "export_ready"
	TemplateDeletionComplete = "deletion_complete"
)

// Notifier sends one templated message to one recipient.
type Notifier interface {
	Send(ctx context.Context, template, recipient string, data map[string]any) error
}

// Noop drops messages. Used when SMTP is not configured.
type Noop struct{}

func (Noop) Send(context.Context, string, string, map[string]any) error { return nil }

// Sent is one captured message. Test double state.
type Sent struct {
	Template  string
	Recipient string
	Data      map[string]any
}

// Fake captures messages and can be programmed to fail. Test double.
type Fake struct {
	mu   sync.Mutex
	Err  error
	sent []Sent
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Send(_ context.Context, template, recipient string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, Sent{Template: template, Recipient: recipient, Data: data})
	return nil
}

// Messages returns a copy of everything sent.
func (f *Fake) Messages() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sent, len(f.sent))
	copy(out, f.sent)
	return out
}
