package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore/password"
)

func newHashPasswordCommand() *cobra.Command {
	var cfg password.Argon2Config
	defaults := password.DefaultArgon2Config()
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its argon2id hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no password on stdin")
			}
			secret := strings.TrimRight(line, "\r\n")

			hasher, err := password.NewArgon2(cfg)
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	fs := cmd.Flags()
	cfg = defaults
	fs.Uint32Var(&cfg.Memory, "memory", defaults.Memory, "argon2 memory in KiB")
	fs.Uint32Var(&cfg.Time, "time", defaults.Time, "argon2 iterations")
	fs.Uint8Var(&cfg.Parallelism, "parallelism", defaults.Parallelism, "argon2 lanes")
	return cmd
}
