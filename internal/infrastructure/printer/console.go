package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gatehouse/internal/ports"
)

// Console writes badges to a writer. The real driver is out of scope; this
// stands in for it at the same port so the job state machine is exercised
// end to end.
type Console struct {
	out io.Writer
}

var _ ports.BadgePrinter = (*Console)(nil)

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Print(ctx context.Context, badge ports.RenderedBadge) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.out == nil {
		return errors.New("printer output is required")
	}

	_, err := fmt.Fprintf(c.out, "=== badge %s (ticket %s) ===\n%s\n", badge.JobID, badge.TicketID, strings.Join(badge.Lines, "\n"))
	return err
}
