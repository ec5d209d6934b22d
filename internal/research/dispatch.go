package research

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const defaultToolTimeout = 20 * time.Second

// Dispatch invokes the planned adapters concurrently and aggregates whatever
// they return. Adapters missing a precondition (etherscan with no address)
// and unknown tool names are skipped before invocation; each skip is logged
// and described in the returned notes for the reasoning trace. A panicking
// or timed-out invocation becomes a logged omission, while a Success:false
// result an adapter returns itself is kept. No retries happen here.
func Dispatch(ctx context.Context, req Request, tools []string, adapters map[string]Adapter, timeout time.Duration) ([]ToolResult, []string) {
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}

	selected := make([]Adapter, 0, len(tools))
	var notes []string
	for _, name := range tools {
		adapter, ok := adapters[name]
		if !ok {
			log.Printf("research dispatch: unknown tool skipped: tool=%s", name)
			notes = append(notes, fmt.Sprintf("Skipped unknown tool %q", name))
			continue
		}
		if name == ToolEtherscan && req.Address == "" {
			log.Printf("research dispatch: etherscan skipped: no address in request")
			notes = append(notes, "Skipped Etherscan: no address available for on-chain lookup")
			continue
		}
		selected = append(selected, adapter)
	}

	results := make([]ToolResult, len(selected))
	completed := make([]bool, len(selected))

	var wg sync.WaitGroup
	for i, adapter := range selected {
		wg.Add(1)
		go func(i int, adapter Adapter) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			// Invoke runs in its own goroutine so a hung adapter cannot
			// stall the whole dispatch past its timeout.
			done := make(chan ToolResult, 1)
			panicked := make(chan struct{})
			go func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("research dispatch: adapter panicked: tool=%s panic=%v", adapter.Name(), r)
						close(panicked)
					}
				}()
				done <- adapter.Invoke(callCtx, req)
			}()

			select {
			case result := <-done:
				results[i] = result
				completed[i] = true
			case <-panicked:
			case <-callCtx.Done():
				log.Printf("research dispatch: adapter dropped: tool=%s reason=%v", adapter.Name(), callCtx.Err())
			}
		}(i, adapter)
	}
	wg.Wait()

	kept := make([]ToolResult, 0, len(selected))
	for i, ok := range completed {
		if ok {
			kept = append(kept, results[i])
		}
	}
	return kept, notes
}
