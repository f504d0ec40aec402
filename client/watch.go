package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/common/logging"
	"github.com/lightsparkdev/kylan-go/schema"
)

// Change is one committed update to a program record.
type Change struct {
	Type    schema.RecordType
	Address common.Address
	// Record is a *schema.Printer, *schema.Cert or *schema.Cheque.
	Record any
}

// WatchHandler receives each change. err is set, wrapping
// schema.ErrUnmatchedType or schema.ErrDiscriminatorMismatch, when the
// account at change.Address holds none of the records.
type WatchHandler func(change *Change, err error)

// Watch calls handler for every change to an account owned by the program
// until ctx is done or Unwatch is called with the returned handle. Changes
// are delivered in commit order on a single goroutine.
func (c *Client) Watch(ctx context.Context, handler WatchHandler) (uuid.UUID, error) {
	logger := logging.GetLoggerFromContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	sub, err := c.ledger.Subscribe(ctx, c.Config.ProgramID)
	if err != nil {
		cancel()
		return uuid.Nil, kylan.WrapError(kylan.KindInternal, err, "failed to subscribe to program %s", c.Config.ProgramID)
	}

	c.mu.Lock()
	c.watches[sub.ID] = func() {
		cancel()
		_ = c.ledger.Unsubscribe(sub.ID)
	}
	c.mu.Unlock()

	go func() {
		defer c.forget(sub.ID)
		for account := range sub.Updates {
			recordType, record, err := schema.Decode(account.Data)
			if err != nil {
				handler(&Change{Address: account.Address}, fmt.Errorf("account %s: %w", account.Address, err))
				continue
			}
			handler(&Change{Type: recordType, Address: account.Address, Record: record}, nil)
		}
		logger.Debug("Watch ended", "watch", sub.ID)
	}()

	return sub.ID, nil
}

func (c *Client) forget(id uuid.UUID) {
	c.mu.Lock()
	stop, ok := c.watches[id]
	delete(c.watches, id)
	c.mu.Unlock()
	if ok {
		stop()
	}
}

// Unwatch stops the watch with the given handle.
func (c *Client) Unwatch(id uuid.UUID) error {
	c.mu.Lock()
	stop, ok := c.watches[id]
	delete(c.watches, id)
	c.mu.Unlock()
	if !ok {
		return kylan.NewError(kylan.KindNotFound, "no watch %s", id)
	}
	stop()
	return nil
}
