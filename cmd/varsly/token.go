package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ToffenYT/varsly/internal/unsubscribe"
)

func (c *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or verify unsubscribe tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "issue [subscriber-id]",
		Short: "Print an unsubscribe token and link for a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.signer()
			if err != nil {
				return err
			}
			token, err := s.Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s/unsubscribe?token=%s\n", c.cfg.App.PublicURL, token)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify [token]",
		Short: "Verify a token and print its subscriber id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.signer()
			if err != nil {
				return err
			}
			sub, err := s.Verify(args[0])
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sub)
			return nil
		},
	})
	return cmd
}

func (c *cli) signer() (*unsubscribe.Signer, error) {
	s, err := unsubscribe.NewSigner(c.cfg.App.UnsubscribeSecret, c.cfg.App.TokenTTL)
	if errors.Is(err, unsubscribe.ErrNoSecret) {
		return nil, fmt.Errorf("UNSUBSCRIBE_JWT_SECRET is not set: %w", err)
	}
	return s, err
}
