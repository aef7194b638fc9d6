package main

import (
	"fmt"
	"net"
	"sort"

	"github.com/abihf/smartmirror/protocol"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Ask the running daemon for its state",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := net.Dial("unix", conf.Socket)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := protocol.WriteStatusReq(conn); err != nil {
			return err
		}
		res, err := readResult(conn)
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(res.Extras))
		for k := range res.Extras {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%-15s %s\n", k, res.Extras[k])
		}
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key KEY...",
	Short: "Send key presses to the running daemon",
	Long: `key forwards key names, as reported by a keyboard listener, to the
daemon. Letters type a name, Return confirms, BackSpace deletes and Escape
cancels. Example: mirror key Return a n a Return Return`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := net.Dial("unix", conf.Socket)
		if err != nil {
			return err
		}
		defer conn.Close()

		for _, key := range args {
			if err := protocol.WriteKeyReq(conn, key); err != nil {
				return err
			}
			if _, err := readResult(conn); err != nil {
				return errors.Wrapf(err, "key %s", key)
			}
		}
		return nil
	},
}

func readResult(conn net.Conn) (*protocol.Res, error) {
	res, err := protocol.ReadRes(conn)
	if err != nil {
		return nil, err
	}
	if res.Status != protocol.StatusSuccess {
		return nil, errors.New(res.Error)
	}
	return res, nil
}

func init() {
	rootCmd.AddCommand(statusCmd, keyCmd)
}
