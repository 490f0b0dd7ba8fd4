package cmd

import (
	"context"
	"fmt"

	"github.com/groovekit/loopvault/internal/conflict"
)

// Conflicts lists unresolved conflicts with a field-level summary
func Conflicts(ctx context.Context) {
	cfg, err := LoadConfig()
	if err != nil {
		HandleError(err)
	}

	adapter, err := OpenVault(cfg)
	if err != nil {
		HandleError(err)
	}
	defer adapter.Close()
	if err := adapter.Init(ctx); err != nil {
		HandleError(err)
	}

	records, err := conflict.NewStore(adapter).List(ctx, true)
	if err != nil {
		HandleError(err)
	}
	if len(records) == 0 {
		fmt.Println("No unresolved conflicts")
		return
	}

	for _, rec := range records {
		summary, err := conflict.Summarize(rec)
		if err != nil {
			HandleError(err)
		}

		fmt.Printf("%s  %s %s  [%s]\n", rec.ID, summary.EntityType, summary.EntityID, summary.MaxSeverity())
		fmt.Printf("  local  (%s) edited %s\n", summary.LocalDevice, summary.LocalUpdatedAt.Format("2006-01-02 15:04:05.000"))
		fmt.Printf("  remote (%s) edited %s\n", summary.RemoteDevice, summary.RemoteUpdatedAt.Format("2006-01-02 15:04:05.000"))
		for _, d := range summary.Diffs {
			if d.Detail != "" {
				fmt.Printf("    %-14s %s\n", d.Field+":", d.Detail)
			} else {
				fmt.Printf("    %-14s %s -> %s\n", d.Field+":", d.Local, d.Remote)
			}
		}
		fmt.Println()
	}

	fmt.Printf("%d unresolved conflict(s)\n", len(records))
	fmt.Println("Resolve with 'loopvault resolve <id> local|remote'")
}
