package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
)

// newDevicesCommand queries a running daemon's HTTP API and renders the
// device list for the given vendor user.
func newDevicesCommand() *cobra.Command {
	var (
		addr string
		uid  string
	)

	cmd := &cobra.Command{
		Use:           "devices",
		Short:         "List the vendor account's devices known to a running hub",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uid == "" {
				return errors.New("--uid is required")
			}

			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Get(fmt.Sprintf("http://%s/v1/devices?uid=%s", addr, url.QueryEscape(uid)))
			if err != nil {
				return fmt.Errorf("query hub at %s: %w", addr, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				var e struct {
					Error string `json:"error"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&e)
				return fmt.Errorf("hub returned %s: %s", resp.Status, e.Error)
			}

			var devs []model.DeviceSummary
			if err := json.NewDecoder(resp.Body).Decode(&devs); err != nil {
				return fmt.Errorf("decode device list: %w", err)
			}

			table := uitable.New()
			table.MaxColWidth = 50
			table.AddRow("ID", "NAME", "PRODUCT", "ONLINE", "LINKED")
			for _, d := range devs {
				table.AddRow(d.ID, d.Name, d.ProductName, d.Online, d.Linked)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Address of the running hub's HTTP API.")
	cmd.Flags().StringVar(&uid, "uid", "", "Vendor user id whose devices to list.")

	return cmd
}
