// Package threads links inbound messages to conversation threads.
package threads

import (
	"context"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

// LinkResult describes the thread context established for one message.
type LinkResult struct {
	Thread       *domain.Thread
	FirstMessage bool
	MessageCount int
	// Linked is false when thread storage was unavailable. Downstream steps
	// treat that as "first message".
	Linked bool
}

// Linker associates messages with threads keyed by normalized subject and
// participant pair.
type Linker struct {
	threadRepo out.ThreadRepository
	log        zerolog.Logger
}

func NewLinker(threadRepo out.ThreadRepository, log zerolog.Logger) *Linker {
	return &Linker{
		threadRepo: threadRepo,
		log:        log.With().Str("component", "thread_linker").Logger(),
	}
}

// Link finds or creates the thread for a message and appends the message id.
// Failure is non-fatal: the pipeline proceeds without thread context.
func (l *Linker) Link(ctx context.Context, msg *domain.Message) (*LinkResult, error) {
	subject := domain.NormalizeSubject(msg.Subject)
	a, b := domain.ParticipantPair(msg.FromEmail, msg.ToEmail)

	thread, err := l.threadRepo.GetOrCreate(ctx, msg.AccountID, subject, a, b)
	if err != nil {
		l.log.Warn().Err(err).Str("external_id", msg.ExternalID).
			Msg("thread lookup failed, proceeding without thread context")
		return &LinkResult{FirstMessage: true, MessageCount: 1, Linked: false},
			apperr.ThreadLinkFailure(err)
	}

	if err := l.threadRepo.AppendMessage(ctx, thread.ID, msg.ID); err != nil {
		l.log.Warn().Err(err).Int64("thread_id", thread.ID).
			Msg("thread append failed, proceeding without thread context")
		return &LinkResult{FirstMessage: true, MessageCount: 1, Linked: false},
			apperr.ThreadLinkFailure(err)
	}

	count, err := l.threadRepo.MessageCount(ctx, thread.ID)
	if err != nil {
		count = thread.MessageCount + 1
	}

	first, err := l.threadRepo.IsFirstMessage(ctx, thread.ID, msg.ID)
	if err != nil {
		first = count <= 1
	}

	return &LinkResult{
		Thread:       thread,
		FirstMessage: first,
		MessageCount: count,
		Linked:       true,
	}, nil
}
