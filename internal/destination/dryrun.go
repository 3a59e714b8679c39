package destination

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DryRun writes narrations to w instead of posting them.
//
// Each delivery is printed as the subject in brackets followed by the body,
// with continuation lines indented.
type DryRun struct {
	mu sync.Mutex
	w  io.Writer
}

// NewDryRun returns a poster that prints to w.
func NewDryRun(w io.Writer) *DryRun {
	return &DryRun{w: w}
}

// Post implements Poster.
func (p *DryRun) Post(_ context.Context, d Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	body := strings.ReplaceAll(d.Body, "\n", "\n    ")
	_, err := fmt.Fprintf(p.w, "[%s] %s\n", d.Subject, body)
	return err
}
