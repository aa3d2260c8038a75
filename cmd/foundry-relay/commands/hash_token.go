package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// hashTokenCommand returns the 'hash-token' subcommand. It digests a relay
// access token so the configuration file never holds the plaintext.
func hashTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-token",
		Usage: "Hashes a relay access token for the [[auth.proxy_tokens]] config section",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "label",
				Usage: "label recorded for requests authenticated with this token",
				Value: "default",
			},
		},
		Action: hashTokenAction,
	}
}

func hashTokenAction(ctx context.Context, cmd *cli.Command) error {
	token, err := readSecureInput(ctx, "Enter token: ")
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	digest := sha256.Sum256([]byte(token))

	fmt.Println()
	fmt.Println("Add this to your configuration file:")
	fmt.Println()
	fmt.Println("[[auth.proxy_tokens]]")
	fmt.Printf("label = %q\n", cmd.String("label"))
	fmt.Printf("sha256 = %q\n", hex.EncodeToString(digest[:]))

	return nil
}

// readSecureInput reads user input with hidden display and context cancellation support.
// Goroutine+select pattern required because term.ReadPassword has no native context support.
func readSecureInput(ctx context.Context, prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.value, nil
	}
}
