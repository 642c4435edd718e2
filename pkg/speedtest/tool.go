// Package speedtest wraps external speed-test CLIs and CDN download probes
// behind one canonical result shape.
package speedtest

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"sync"
	"time"

	"gatewaymon/internal/constants"
)

// Result is the canonical outcome of one tool invocation.
type Result struct {
	Status            string // success|error|timeout
	DownloadMbps      float64
	UploadMbps        float64
	PingMs            float64
	JitterMs          *float64
	PacketLossPercent *float64
	ServerName        string
	ServerHost        string
	ErrorMessage      string
}

// Tool is one speed-test backend: a name, an availability probe, and a run
// function that performs the measurement.
type Tool struct {
	Name    string
	Detect  func(ctx context.Context) bool
	Measure func(ctx context.Context) Result
}

// runCommand executes name with args under a deadline, capturing stdout.
// Grounded on the capture-then-kill shell execution pattern: separate
// stdout/stderr handling, a hard deadline, and SIGKILL on expiry so the
// caller is never blocked on an unbounded child.
func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}

	var lines []string
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		buf := make([]byte, 64*1024)
		scanner.Buffer(buf, constants.MaxOutputBytes)
		for scanner.Scan() {
			mu.Lock()
			lines = append(lines, scanner.Text())
			mu.Unlock()
		}
	}()

	if err := cmd.Start(); err != nil {
		return "", err
	}
	waitErr := cmd.Wait()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	output := ""
	for i, l := range lines {
		if i > 0 {
			output += "\n"
		}
		output += l
	}

	if ctx.Err() == context.DeadlineExceeded {
		return output, context.DeadlineExceeded
	}
	return output, waitErr
}

var numberPattern = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+`)
