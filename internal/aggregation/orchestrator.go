package aggregation

import (
	"context"
	"fmt"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"time"
)

// Options configures an Orchestrator
type Options struct {
	// PollInterval is the time to wait between two task polls
	PollInterval time.Duration

	// PollTimeout bounds the overall time spent waiting for a task to end
	PollTimeout time.Duration

	// MaxPollAttempts bounds the number of task polls
	MaxPollAttempts int

	// PollErrorBudget is the number of failed polls that are tolerated before the run is aborted.
	// Zero aborts on the first failed poll.
	PollErrorBudget int

	// TransactionWorkers is the number of accounts whose transactions are fetched concurrently
	TransactionWorkers int
}

// DefaultOptions returns the options used by the reference deployments
func DefaultOptions() Options {
	return Options{
		PollInterval:       2 * time.Second,
		PollTimeout:        2 * time.Minute,
		MaxPollAttempts:    60,
		PollErrorBudget:    0,
		TransactionWorkers: 1,
	}
}

// Orchestrator aggregates the accounts and transactions of a user by triggering a fetch task, waiting for it to end
// and collecting its results
type Orchestrator struct {
	api     ResourceAPI
	options Options
}

// NewOrchestrator creates a new orchestrator; non-positive options fall back to DefaultOptions
func NewOrchestrator(api ResourceAPI, options Options) *Orchestrator {
	defaults := DefaultOptions()
	if options.PollInterval <= 0 {
		options.PollInterval = defaults.PollInterval
	}
	if options.PollTimeout <= 0 {
		options.PollTimeout = defaults.PollTimeout
	}
	if options.MaxPollAttempts <= 0 {
		options.MaxPollAttempts = defaults.MaxPollAttempts
	}
	if options.PollErrorBudget < 0 {
		options.PollErrorBudget = defaults.PollErrorBudget
	}
	if options.TransactionWorkers <= 0 {
		options.TransactionWorkers = defaults.TransactionWorkers
	}
	return &Orchestrator{
		api:     api,
		options: options,
	}
}

// Run aggregates the accounts and transactions of a user.
// Any failing resource API call aborts the whole run; no partial report is returned.
// Cancelling ctx stops the run, including a pending wait for the fetch task.
func (orchestrator *Orchestrator) Run(ctx context.Context, userID, accessToken string) (*Report, error) {
	taskID, err := orchestrator.api.TriggerFetch(ctx, accessToken, userID)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("user_id", userID).Str("task_id", taskID).Msg("triggered fetch task")

	if err := orchestrator.awaitTask(ctx, userID, accessToken, taskID); err != nil {
		return nil, err
	}

	accounts, err := orchestrator.api.ListAccounts(ctx, accessToken, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]*AccountEntry, len(accounts))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(orchestrator.options.TransactionWorkers)
	for i, account := range accounts {
		i, account := i, account
		group.Go(func() error {
			transactions, err := orchestrator.api.ListTransactions(groupCtx, accessToken, userID, account.ID)
			if err != nil {
				return err
			}
			entries[i] = &AccountEntry{
				Account:      account,
				Transactions: transactions,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	log.Debug().Str("user_id", userID).Str("task_id", taskID).Int("accounts", len(entries)).Msg("aggregated accounts and transactions")
	return &Report{Accounts: entries}, nil
}

// awaitTask polls a fetch task until an event of type EventTypeTaskEnded is reported
func (orchestrator *Orchestrator) awaitTask(ctx context.Context, userID, accessToken, taskID string) error {
	pollCtx, cancel := context.WithTimeout(ctx, orchestrator.options.PollTimeout)
	defer cancel()

	// timedOut distinguishes the poll timeout from a cancellation of the parent context
	timedOut := func(attempts int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w (task %s, %d polls)", ErrTimeout, taskID, attempts)
	}

	failures := 0
	for attempt := 1; ; attempt++ {
		events, err := orchestrator.api.PollTask(pollCtx, accessToken, userID, taskID)
		if err != nil {
			if pollCtx.Err() != nil {
				return timedOut(attempt)
			}
			failures++
			if failures > orchestrator.options.PollErrorBudget {
				return err
			}
			log.Warn().Err(err).Str("task_id", taskID).Int("attempt", attempt).Msg("could not poll fetch task")
		} else if hasEnded(events) {
			log.Debug().Str("task_id", taskID).Int("attempt", attempt).Msg("fetch task ended")
			return nil
		}

		if attempt >= orchestrator.options.MaxPollAttempts {
			return timedOut(attempt)
		}

		timer := time.NewTimer(orchestrator.options.PollInterval)
		select {
		case <-timer.C:
		case <-pollCtx.Done():
			timer.Stop()
			return timedOut(attempt)
		}
	}
}

func hasEnded(events []*Event) bool {
	for _, event := range events {
		if event != nil && event.Type == EventTypeTaskEnded {
			return true
		}
	}
	return false
}
