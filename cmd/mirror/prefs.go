package main

import (
	"fmt"
	"strings"

	"github.com/abihf/smartmirror/greet"
	"github.com/abihf/smartmirror/records"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs [NAME [CATEGORY...]]",
	Short: "Show or change what content a person is greeted with",
	Long: `Without arguments prefs lists every enrolled person with their
content categories. With a name it shows that person's categories, and with
categories it replaces them. Known categories: ` + strings.Join(greet.Categories, ", "),
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := records.Open(conf.Paths.Records)
		if err != nil {
			return err
		}
		defer recs.Close()
		ctx := cmd.Context()

		if len(args) == 0 {
			people, err := recs.People(ctx)
			if err != nil {
				return err
			}
			for _, name := range people {
				cats, err := recs.Categories(ctx, name)
				if err != nil {
					return err
				}
				fmt.Printf("%-20s %s\n", name, strings.Join(cats, ", "))
			}
			return nil
		}

		name, cats := args[0], args[1:]
		if len(cats) == 0 {
			current, err := recs.Categories(ctx, name)
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(current, ", "))
			return nil
		}
		for _, c := range cats {
			if _, ok := greet.Lists[c]; !ok {
				return errors.Errorf("unknown category %q, expected one of %s", c, strings.Join(greet.Categories, ", "))
			}
		}
		if err := recs.SetCategories(ctx, name, cats...); err != nil {
			if errors.Is(err, records.ErrNotFound) {
				return errors.Errorf("%s is not enrolled", name)
			}
			return err
		}
		fmt.Printf("%s: %s\n", name, strings.Join(cats, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
}
