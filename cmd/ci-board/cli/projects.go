package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davarch/ci-board/internal/infrastructure/config"
	"github.com/davarch/ci-board/internal/infrastructure/store_sqlite"
	"github.com/spf13/cobra"
)

var projectsJSON bool

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List onboarded projects and their versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		store, err := store_sqlite.OpenAndMigrate(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		projects, err := store.ListProjects(cmd.Context())
		if err != nil {
			return err
		}

		if projectsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(projects)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tREPOSITORY_ID\tVERSION\tBRANCH\tPIPELINES")
		for _, p := range projects {
			if len(p.Versions) == 0 {
				_, _ = fmt.Fprintf(w, "%s\t%d\t-\t-\t0\n", p.Name, p.RepositoryID)
				continue
			}
			for _, v := range p.Versions {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\n",
					p.Name, p.RepositoryID, v.Version, v.BranchID, len(v.Pipelines))
			}
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	projectsCmd.Flags().BoolVar(&projectsJSON, "json", false, "print JSON")

	rootCmd.AddCommand(projectsCmd)
}
