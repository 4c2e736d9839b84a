package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"facecapture/internal/camera"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "利用可能なカメラデバイスを表示する",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		discovery := camera.NewLinuxDiscovery()

		devices, err := discovery.ScanDevices(ctx)
		if err != nil {
			return fmt.Errorf("デバイスの検出に失敗: %w", err)
		}

		types := camera.NewVideoSourceFactory().GetSupportedTypes()
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		fmt.Printf("ソースタイプ: %s\n\n", strings.Join(names, ", "))

		if len(devices) == 0 {
			fmt.Println("カメラが見つかりません")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tNAME\tFORMATS")
		for _, device := range devices {
			info, err := discovery.GetDeviceInfo(ctx, device)
			if err != nil {
				fmt.Fprintf(w, "%s\t-\t%v\n", device, err)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", info.Device, info.Name, strings.Join(info.Formats, ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
