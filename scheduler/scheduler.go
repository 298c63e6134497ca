// Package scheduler drives a batch of transfer jobs concurrently and
// renders their progress to a terminal at roughly 1Hz, grounded on
// internal/ascii's cursor-relative multi-line redraw primitives.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ocipack/ocipack/internal/ascii"
	"github.com/ocipack/ocipack/transfer"
)

// Job is the subset of transfer.DownloadJob/transfer.UploadJob the
// scheduler needs: start it and poll its progress.
type Job interface {
	Start(ctx context.Context) <-chan transfer.Result
	Status() transfer.Status
}

// Run starts every job, polls their status once a second (redrawing a
// progress bar per job to out when out is a terminal, otherwise staying
// silent), and returns once every job has completed. The returned slice
// is in the same order as jobs.
func Run(ctx context.Context, jobs []Job, out io.Writer) []transfer.Result {
	results := make([]transfer.Result, len(jobs))
	chans := make([]<-chan transfer.Result, len(jobs))
	for i, j := range jobs {
		chans[i] = j.Start(ctx)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0
	wg.Add(len(jobs))
	for i, ch := range chans {
		go func(i int, ch <-chan transfer.Result) {
			defer wg.Done()
			r := <-ch
			mu.Lock()
			results[i] = r
			done++
			mu.Unlock()
		}(i, ch)
	}

	drawDone := make(chan struct{})
	render := out != nil && ascii.IsWriterTerminal(out)
	if render {
		go func() {
			defer close(drawDone)
			lines := ascii.NewLines(out)
			bar := ascii.NewProgressBar(out)
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				mu.Lock()
				finished := done >= len(jobs)
				mu.Unlock()
				drawFrame(jobs, bar, lines)
				if finished {
					lines.Flush()
					return
				}
				<-ticker.C
			}
		}()
	}

	wg.Wait()
	if render {
		<-drawDone
	}
	return results
}

func drawFrame(jobs []Job, bar *ascii.ProgressBar, lines *ascii.Lines) {
	lines.Del()
	for _, j := range jobs {
		st := j.Status()
		pct := 0.0
		if st.Total > 0 {
			pct = float64(st.Done) / float64(st.Total)
		}
		pre := fmt.Sprintf("%s %-10s ", st.Short, strings.ToUpper(st.State.String()))
		post := fmt.Sprintf(" %d/%d", st.Done, st.Total)
		lines.Add(bar.Generate(pct, pre, post))
	}
	lines.Flush()
}
