// Command zatyrani-admin manages association members and sends one-off SMS
// messages from the operator's shell.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zatyrani/zatyrani-backend/config"
	"github.com/zatyrani/zatyrani-backend/database"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/auth"
	"github.com/zatyrani/zatyrani-backend/internal/notification"
	"github.com/zatyrani/zatyrani-backend/utils"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "zatyrani-admin",
		Short:        "Administration of the zatyrani.pl backend",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(membersCmd())
	rootCmd.AddCommand(smsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// memberService opens the database and wires the member service the same
// way the API server does, minus the login code throttle.
func memberService() (auth.Service, error) {
	cfg := config.Load()
	utils.InitLogger(false)
	logrus.SetLevel(logrus.WarnLevel)

	db := database.Connect(cfg)
	if err := db.AutoMigrate(&auth.Member{}, &auditlog.AuditLog{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	notifier := notification.NewService(notification.NewRepository(db), notification.NewEmailChannel(cfg), notification.NewSMSChannel(cfg), nil)
	auditSvc := auditlog.NewService(auditlog.NewRepository(db))
	return auth.NewService(auth.NewRepository(db), notifier, nil, auditSvc, cfg), nil
}

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage members allowed to log in with an SMS code",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [name] [phone]",
		Short: "Add a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := memberService()
			if err != nil {
				return err
			}
			m, err := svc.AddMember(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", m.Name, m.Phone)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [phone]",
		Short: "Remove a member and end their sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := memberService()
			if err != nil {
				return err
			}
			if err := svc.RemoveMember(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := memberService()
			if err != nil {
				return err
			}
			members, err := svc.ListMembers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPHONE\tACTIVE")
			for _, m := range members {
				fmt.Fprintf(w, "%s\t%s\t%t\n", m.Name, m.Phone, m.Active)
			}
			return w.Flush()
		},
	})

	return cmd
}

func smsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Send SMS messages through Twilio",
	}

	send := &cobra.Command{
		Use:   "send [phone] [message...]",
		Short: "Send one SMS",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, ok := auth.NormalizePolishPhone(args[0])
			if !ok {
				return fmt.Errorf("invalid phone number %q", args[0])
			}
			text := strings.Join(args[1:], " ")
			if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
				fmt.Printf("Would send to %s: %s\n", phone, text)
				return nil
			}

			cfg := config.Load()
			channel := notification.NewSMSChannel(cfg)
			if err := channel.Send(cmd.Context(), notification.Message{
				Channel: notification.ChannelSMS,
				Kind:    "admin_sms",
				To:      []string{phone},
				Text:    text,
			}); err != nil {
				return err
			}
			fmt.Printf("Sent to %s\n", phone)
			return nil
		},
	}
	send.Flags().Bool("dry-run", false, "Print the message instead of sending it")
	cmd.AddCommand(send)

	return cmd
}
