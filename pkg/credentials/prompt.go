package credentials

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

// TerminalPrompter reads credentials interactively. Reads run in a goroutine
// so a cancelled context abandons a prompt the operator never answers.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

// Prompt implements Prompter.
func (p *TerminalPrompter) Prompt(ctx context.Context) (deploy.Credentials, error) {
	type result struct {
		creds deploy.Credentials
		err   error
	}
	ch := make(chan result, 1)

	go func() {
		reader := bufio.NewReader(p.In)

		fmt.Fprint(p.Out, "Username: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			ch <- result{err: fmt.Errorf("reading username: %w", err)}
			return
		}

		fmt.Fprint(p.Out, "Access token: ")
		secret, err := reader.ReadString('\n')
		if err != nil {
			ch <- result{err: fmt.Errorf("reading access token: %w", err)}
			return
		}

		ch <- result{creds: deploy.Credentials{
			Username: strings.TrimSpace(username),
			Secret:   strings.TrimSpace(secret),
		}}
	}()

	select {
	case <-ctx.Done():
		return deploy.Credentials{}, ctx.Err()
	case r := <-ch:
		return r.creds, r.err
	}
}
