package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/HarshKochar9008/WINCE/pkg/health"
)

func newHealthCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:         "health",
		Args:        cobra.NoArgs,
		Short:       "Check the API and configured dependencies",
		Annotations: noSession(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := rt.app.Health().Check(cmd.Context())
			err := rt.emit(res, func(w io.Writer) error {
				names := make([]string, 0, len(res.Checks))
				for name := range res.Checks {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					c := res.Checks[name]
					line := fmt.Sprintf("%-12s %-4s %s", name, c.Status, c.Latency.Round(time.Microsecond))
					if c.Error != "" {
						line += "  " + c.Error
					}
					if _, err := fmt.Fprintln(w, line); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if res.Status != health.StatusUp {
				return fmt.Errorf("one or more checks are down")
			}
			return nil
		},
	}
}
