package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kelasin/chat/pkg/chatclient"
	"kelasin/chat/pkg/chatproto"
)

func (a *app) classesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the classes you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			classes, err := api.ListClasses(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if len(classes) == 0 {
				fmt.Println("You are not a member of any class.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tMEMBERS\tLAST MESSAGE")
			for _, c := range classes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.ID, c.Name, c.Role, c.MemberCount, lastMessage(c.LastMessage))
			}
			return w.Flush()
		},
	}
}

func lastMessage(m *chatproto.LastMessage) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%s: %s (%s)", m.SenderName, truncate(m.Content, 40), humanize.Time(m.SentAt))
}

func (a *app) historyCmd() *cobra.Command {
	var (
		pages  int
		search string
	)

	cmd := &cobra.Command{
		Use:   "history <classId>",
		Short: "Print the recent history of a class chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			user, err := api.Me(cmd.Context())
			if err != nil {
				return explain(err)
			}

			tl := chatclient.NewTimeline(user.ID)
			pager := chatclient.NewPager(api, tl, a.notifier(), 0)
			pager.SetClass(args[0])
			if search != "" {
				err = pager.Search(cmd.Context(), search)
			} else {
				err = pager.LoadInitial(cmd.Context())
			}
			if err != nil {
				return explain(err)
			}
			for i := 1; i < pages && pager.HasMore(); i++ {
				if _, err := pager.LoadMore(cmd.Context()); err != nil {
					return explain(err)
				}
			}

			var r chatclient.Renderer
			for _, m := range tl.Messages() {
				fmt.Print(r.Format(r.Render(m, user.ID)))
			}
			if pager.HasMore() {
				fmt.Println("(older messages available, use --pages)")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to load")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only messages containing this text")
	return cmd
}

func (a *app) notifier() chatclient.Notifier {
	return chatclient.NotifierFunc(func(t chatclient.Toast) {
		if t.Description != "" {
			fmt.Fprintf(os.Stderr, "! %s: %s\n", t.Title, t.Description)
			return
		}
		fmt.Fprintf(os.Stderr, "! %s\n", t.Title)
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
