package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/drewdunne/prwatch/internal/notify"
	"github.com/drewdunne/prwatch/internal/server"
	"github.com/drewdunne/prwatch/internal/store"
	"github.com/spf13/cobra"
)

const defaultAddr = "http://localhost:7000"

// apiClient talks to a running prwatch server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(addr string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body server.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error.Message != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, body.Error.Message, body.Error.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newNotificationsCommand() *cobra.Command {
	var (
		addr    string
		unread  bool
		markAll bool
	)
	cmd := &cobra.Command{
		Use:   "notifications [id-to-mark-read]",
		Short: "List notifications from a running server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := newAPIClient(addr)

			switch {
			case len(args) == 1:
				if err := c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(args[0])+"/read", nil, nil); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Marked as read")
				return nil
			case markAll:
				var res map[string]int
				if err := c.do(ctx, http.MethodPost, "/notifications/read", nil, &res); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notifications as read\n", res["marked"])
				return nil
			}

			query := url.Values{}
			if unread {
				query.Set("unread", "true")
			}
			var list []notify.Notification
			if err := c.do(ctx, http.MethodGet, "/notifications", query, &list); err != nil {
				return err
			}

			rows := make([][]string, 0, len(list))
			for _, n := range list {
				read := ""
				if !n.Read {
					read = "*"
				}
				rows = append(rows, []string{read, n.ID, string(n.Severity), n.Title, n.Description, n.CreatedAt.Local().Format(time.DateTime)})
			}
			return renderTable(cmd.OutOrStdout(), []string{"", "ID", "Severity", "Title", "Description", "Created"}, rows)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "Server address")
	cmd.Flags().BoolVar(&unread, "unread", false, "Only show unread notifications")
	cmd.Flags().BoolVar(&markAll, "mark-all-read", false, "Mark every notification as read")
	return cmd
}

func newValidationsCommand() *cobra.Command {
	var (
		addr   string
		repo   string
		ticket string
		number int
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "validations",
		Short: "List stored validations from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if repo != "" {
				query.Set("repository", repo)
			}
			if ticket != "" {
				query.Set("ticket", ticket)
			}
			if number > 0 {
				query.Set("pr", strconv.Itoa(number))
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			var records []store.ValidationRecord
			if err := newAPIClient(addr).do(cmd.Context(), http.MethodGet, "/validations", query, &records); err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.ID,
					r.RepositoryID,
					strconv.Itoa(r.PRNumber),
					r.TicketID,
					fmt.Sprintf("%.0f%%", r.ConfidenceScore*100),
					r.Findings.Summary,
					r.CreatedAt.Local().Format(time.DateTime),
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"ID", "Repository", "PR", "Ticket", "Confidence", "Summary", "Created"}, rows)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "Server address")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository id, e.g. github/owner/name")
	cmd.Flags().StringVar(&ticket, "ticket", "", "Jira ticket id")
	cmd.Flags().IntVar(&number, "pr", 0, "Pull request number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")
	return cmd
}
