package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"walletrpc/wallet"
)

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [asset-type]",
		Short: "show the wallet balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := wallet.AssetCore
			if len(args) == 1 {
				n, err := strconv.ParseUint(args[0], 10, 8)
				if err != nil {
					return fmt.Errorf("asset-type: %w", err)
				}
				at = wallet.AssetType(n)
			}

			client, _, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			balance, err := client.GetBalance(cmd.Context(), at)
			if err != nil {
				return err
			}
			fmt.Println(balance)
			return nil
		},
	}
}

func transferCmd() *cobra.Command {
	var assetType uint8
	cmd := &cobra.Command{
		Use:   "transfer <amount> <address>",
		Short: "send funds to an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			to, err := wallet.ParseAddress(args[1])
			if err != nil {
				return err
			}

			client, _, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			id, err := client.Transfer(cmd.Context(), wallet.Asset{Amount: amount, Type: wallet.AssetType(assetType)}, to)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&assetType, "asset-type", 0, "asset to transfer")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <address>",
		Short: "ask the daemon whether an address is valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			ok, err := client.ValidateAddress(cmd.Context(), wallet.Address(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		},
	}
}

func blockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <number>",
		Short: "fetch a block header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			num, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("block number: %w", err)
			}

			client, _, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			header, err := client.GetBlock(cmd.Context(), uint32(num))
			if err != nil {
				return err
			}
			fmt.Printf("block %d previous=%s timestamp=%d\n", header.Number, header.Previous, header.Timestamp)
			return nil
		},
	}
}

func txCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tx <transaction-id>",
		Short: "fetch a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			trx, err := client.GetTransaction(cmd.Context(), wallet.TransactionID(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("transaction %s operations=%d signatures=%d\n", trx.ID, len(trx.Operations), len(trx.Signatures))
			return nil
		},
	}
}

func importWalletCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "import-wallet <path>",
		Short: "import keys from a Bitcoin wallet file on the daemon host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := dial(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			ok, err := client.ImportBitcoinWallet(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("daemon declined the import")
			}
			fmt.Println("imported")
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "wallet-password", "", "passphrase of the wallet file")
	return cmd
}
