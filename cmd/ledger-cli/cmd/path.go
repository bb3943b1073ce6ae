package cmd

import (
	"fmt"

	"ledger-core/pkg/bip32"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <derivation-path>",
		Short: "编码 BIP-32 派生路径",
		Long:  `把 m/44'/818'/0'/0/0 形式的路径编码为设备使用的二进制格式: 1 字节分量个数 + 每个分量 4 字节大端。`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := bip32.ParsePath(args[0])
			if err != nil {
				return err
			}
			encoded, err := p.Encode()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:    %s\n", p.String())
			fmt.Fprintf(out, "Depth:   %d\n", len(p))
			fmt.Fprintf(out, "Encoded: %s\n", hexutil.Encode(encoded))
			return nil
		},
	}
}
