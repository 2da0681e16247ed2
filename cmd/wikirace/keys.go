package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neboloop/wikirace/internal/config"
	"github.com/neboloop/wikirace/internal/keyring"
)

// KeysCmd manages provider API keys in the OS keychain.
func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage AI provider API keys in the OS keychain",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <provider>",
		Short:     "Store an API key (read from stdin)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{config.ProviderAnthropic, config.ProviderOpenAI},
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := keyProvider(args[0])
			if err != nil {
				return err
			}
			if !keyring.Available() {
				return errors.New("OS keychain is not available; set the key in the config or environment instead")
			}
			fmt.Fprintf(os.Stderr, "API key for %s: ", provider)
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read key: %w", err)
			}
			key := strings.TrimSpace(line)
			if key == "" {
				return errors.New("empty key")
			}
			if err := keyring.Set(provider, key); err != nil {
				return err
			}
			fmt.Printf("Stored %s key in keychain\n", provider)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := keyProvider(args[0])
			if err != nil {
				return err
			}
			if err := keyring.Delete(provider); err != nil {
				return err
			}
			fmt.Printf("Removed %s key\n", provider)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which providers have a key",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range []string{config.ProviderAnthropic, config.ProviderOpenAI} {
				state := "missing"
				if ServerConfig.APIKey(p) != "" {
					state = "configured"
				}
				fmt.Printf("  %-10s %s\n", p, state)
			}
		},
	})

	return cmd
}

func keyProvider(name string) (string, error) {
	switch name {
	case config.ProviderAnthropic, config.ProviderOpenAI:
		return name, nil
	default:
		return "", fmt.Errorf("unknown provider %q (want anthropic or openai)", name)
	}
}
