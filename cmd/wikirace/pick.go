package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neboloop/wikirace/internal/daily"
	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/wiki"
)

// PickCmd prints a random start/target pair.
func PickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Pick a random start and target article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				logging.Disable()
				defer logging.Enable()
			}
			c := ServerConfig
			picker := daily.New(wiki.NewClient(c.Wiki.BaseURL, c.Wiki.Timeout))
			ch, err := picker.Pick(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", ch.Start, ch.Target)
			return nil
		},
	}
}
