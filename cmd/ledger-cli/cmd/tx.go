package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"ledger-core/pkg/errno"
	"ledger-core/pkg/vettx"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func newTxCmd() *cobra.Command {
	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "VeChain 交易编解码",
	}
	txCmd.AddCommand(newTxEncodeCmd(), newTxDecodeCmd(), newTxHashCmd())
	return txCmd
}

func newTxEncodeCmd() *cobra.Command {
	var (
		input  string
		signed bool
	)
	c := &cobra.Command{
		Use:   "encode",
		Short: "把交易 JSON 编码为 RLP",
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := readTransaction(input)
			if err != nil {
				return err
			}
			variant := vettx.Unsigned
			if signed {
				variant = vettx.Signed
			}
			raw, err := vettx.Encode(tx, variant)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(raw))
			return nil
		},
	}
	c.Flags().StringVarP(&input, "input", "i", "", "交易 JSON 文件 (- 表示标准输入)")
	c.Flags().BoolVar(&signed, "signed", false, "输出带签名字段的编码")
	_ = c.MarkFlagRequired("input")
	return c
}

func newTxDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "解码 RLP 交易并输出 JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(args[0]), "0x"))
			if err != nil {
				return errno.Wrap(errno.ErrInvalidInput, "hex", err)
			}
			tx, variant, err := vettx.Decode(raw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTransaction(out, tx, variant)

			data, err := json.MarshalIndent(tx, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}
}

func newTxHashCmd() *cobra.Command {
	var input string
	c := &cobra.Command{
		Use:   "hash",
		Short: "计算交易签名哈希 (blake2b-256)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := readTransaction(input)
			if err != nil {
				return err
			}
			hash, err := tx.SigningHash()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash.Hex())
			return nil
		},
	}
	c.Flags().StringVarP(&input, "input", "i", "", "交易 JSON 文件 (- 表示标准输入)")
	_ = c.MarkFlagRequired("input")
	return c
}

func readTransaction(path string) (*vettx.Transaction, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("读取交易文件失败: %w", err)
	}
	var tx vettx.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// printTransaction 输出交易摘要，已签名时附带发起方与交易 ID
func printTransaction(out io.Writer, tx *vettx.Transaction, variant vettx.Variant) {
	fmt.Fprintln(out, "================ 交易 ================")
	fmt.Fprintf(out, "Variant:    %s\n", variant)
	fmt.Fprintf(out, "ChainTag:   0x%02x\n", tx.ChainTag)
	fmt.Fprintf(out, "BlockRef:   %s\n", hexutil.Encode(tx.BlockRef[:]))
	fmt.Fprintf(out, "Expiration: %d\n", tx.Expiration)
	for i, c := range tx.Clauses {
		fmt.Fprintf(out, "Clause %d:   %s\n", i, c)
	}
	fmt.Fprintf(out, "Total:      %s VET\n", vettx.FormatVET(tx.TotalValue()))
	fmt.Fprintf(out, "Gas:        %d (coef %d)\n", tx.Gas, tx.GasPriceCoef)
	fmt.Fprintf(out, "Nonce:      0x%x\n", tx.Nonce)
	if hash, err := tx.SigningHash(); err == nil {
		fmt.Fprintf(out, "Hash:       %s\n", hash.Hex())
	}
	if len(tx.Signature) == vettx.SignatureLength {
		if signer, err := tx.Signer(); err == nil {
			fmt.Fprintf(out, "Signer:     %s\n", signer.Hex())
		}
		if id, err := tx.ID(); err == nil {
			fmt.Fprintf(out, "ID:         %s\n", id.Hex())
		}
	}
	fmt.Fprintln(out, "======================================")
}
