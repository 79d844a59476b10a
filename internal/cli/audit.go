package cli

import (
	"context"
	"fmt"
	"time"
)

type auditJSON struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	Detail    string `json:"detail"`
	Timestamp string `json:"timestamp"`
}

// Execute implements the go-flags Commander interface for AuditCommand.
func (c *AuditCommand) Execute(args []string) error {
	rt, release, err := openRuntime(c.globals, c.rt)
	if err != nil {
		return err
	}
	defer release()

	entries, err := rt.audit.Recent(context.Background(), c.Limit)
	if err != nil {
		return err
	}

	if wantJSON(c.globals) {
		out := make([]auditJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, auditJSON{
				ID:        e.ID,
				Action:    e.Action,
				Detail:    e.Detail,
				Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		return printJSON(out)
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-24s %s\n", e.Timestamp.In(rt.location()).Format("2006-01-02 15:04:05"), e.Action, e.Detail)
	}
	return nil
}
