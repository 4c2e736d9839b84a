package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "登録サーバーのセクション一覧を表示する",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := newRegistry(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRegistry(cfg, client)

		sections, err := client.Sections(ctx)
		if err != nil {
			return err
		}

		if len(sections) == 0 {
			fmt.Println("セクションがありません")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME")
		fmt.Fprintln(w, "--\t----")
		for _, s := range sections {
			fmt.Fprintf(w, "%d\t%s\n", s.ID, s.Name)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sectionsCmd)
}
