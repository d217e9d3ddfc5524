package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/LovationAdmin/expense-api/client"
	"github.com/LovationAdmin/expense-api/models"
)

func (o *rootOptions) tracker() (*client.Tracker, error) {
	path := o.sessionPath
	if path == "" {
		var err error
		path, err = client.DefaultSessionPath()
		if err != nil {
			return nil, err
		}
	}
	return client.NewTracker(client.New(o.apiURL()), client.FileStore{Path: path}), nil
}

// openTracker returns a ready tracker and the transactions it validated
// the session with.
func (o *rootOptions) openTracker(ctx context.Context) (*client.Tracker, []models.Transaction, error) {
	t, err := o.tracker()
	if err != nil {
		return nil, nil, err
	}
	txs, err := t.Open(ctx)
	if errors.Is(err, client.ErrNotSignedIn) {
		return nil, nil, errors.New("not signed in, run `expense-api login` first")
	}
	if err != nil {
		return nil, nil, err
	}
	return t, txs, nil
}

func newSignupCmd(opts *rootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			resp, err := client.New(opts.apiURL()).Signup(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			pterm.Success.Println(resp.Message)
			if resp.NeedsConfirmation {
				pterm.Info.Println("Open the link sent to " + resp.User.Email + " before logging in.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			t, err := opts.tracker()
			if err != nil {
				return err
			}
			session, err := t.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Signed in as %s\n", session.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := opts.tracker()
			if err != nil {
				return err
			}
			if err := t.Logout(); err != nil {
				return err
			}
			pterm.Success.Println("Signed out")
			return nil
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, txs, err := opts.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				pterm.Warning.Println("No transactions found")
				return nil
			}

			tableData := pterm.TableData{{"ID", "Date", "Type", "Category", "Description", "Amount"}}
			for _, tx := range txs {
				tableData = append(tableData, []string{
					strconv.FormatInt(tx.ID, 10),
					tx.CreatedAt.Local().Format("2006-01-02 15:04"),
					tx.Type,
					tx.Category,
					tx.Description,
					formatAmount(tx),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
		},
	}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var description, amount, txType, category string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction",
		Example: `  expense-api add -d Coffee -a 15000 -t expense -C food
  expense-api add -d Salary -a 5000000 -t income`,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
			if err != nil {
				return fmt.Errorf("amount %q is not a number", amount)
			}
			a := models.Amount(value)

			t, _, err := opts.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			tx, err := t.Add(cmd.Context(), models.CreateTransactionRequest{
				Description: description,
				Amount:      &a,
				Type:        txType,
				Category:    category,
			})
			if err != nil {
				return err
			}
			pterm.Success.Printf("Added transaction %d (%s %s)\n", tx.ID, tx.Type, formatAmount(*tx))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "what the money was for")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "positive amount")
	cmd.Flags().StringVarP(&txType, "type", "t", models.TypeExpense, "income or expense")
	cmd.Flags().StringVarP(&category, "category", "C", "", "category (default other)")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			t, _, err := opts.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			if err := t.Remove(cmd.Context(), id); err != nil {
				return err
			}
			pterm.Success.Printf("Transaction %d deleted\n", id)
			return nil
		},
	}
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show income, expense and balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _, err := opts.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			s, err := t.Summary(cmd.Context())
			if err != nil {
				return err
			}
			pterm.DefaultSection.Printf("Summary as of %s", time.Now().Format("2006-01-02"))
			return pterm.DefaultTable.WithData(pterm.TableData{
				{"Transactions", strconv.Itoa(s.Count)},
				{"Income", pterm.Green(strconv.FormatFloat(s.Income, 'f', 2, 64))},
				{"Expense", pterm.Red(strconv.FormatFloat(s.Expense, 'f', 2, 64))},
				{"Balance", strconv.FormatFloat(s.Balance, 'f', 2, 64)},
			}).Render()
		},
	}
}

func formatAmount(tx models.Transaction) string {
	text := strconv.FormatFloat(tx.Amount, 'f', 2, 64)
	if tx.Type == models.TypeIncome {
		return pterm.Green("+" + text)
	}
	return pterm.Red("-" + text)
}
