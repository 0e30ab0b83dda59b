package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/privscope/privscope/internal/utils"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List stored template versions",
	Run: func(cmd *cobra.Command, args []string) {
		platform, _ := cmd.Flags().GetString("platform")

		db, cleanup, err := openDB()
		if err != nil {
			utils.Log.Fatal(err)
		}
		defer cleanup()

		templates, err := db.ListTemplates(context.Background(), platform)
		if err != nil {
			utils.Log.Fatal(err)
		}
		if len(templates) == 0 {
			fmt.Println("No templates stored.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPLATFORM\tVERSION\tACTIVE\tSETTINGS\tUSES\tANNOTATED")
		for _, t := range templates {
			annotated := "no"
			if t.Annotation != "" {
				annotated = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%d\t%d\t%s\n", t.ID, t.PlatformID, t.Version, t.Active, t.SettingCount(), t.UsageCount, annotated)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.Flags().StringP("platform", "p", "", "Only show templates for this platform")
}
