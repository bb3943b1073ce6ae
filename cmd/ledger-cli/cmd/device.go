package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"ledger-core/internal/device"
	"ledger-core/pkg/apdu"
	"ledger-core/pkg/bip32"
	"ledger-core/pkg/config"
	"ledger-core/pkg/emulator"
	"ledger-core/pkg/ledger"
	"ledger-core/pkg/response"
	"ledger-core/pkg/vettx"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newDeviceCmd(flags *globalFlags) *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "与设备交互 (speculos 或内置模拟设备)",
	}

	var path string
	deviceCmd.PersistentFlags().StringVarP(&path, "path", "p", bip32.DefaultPath, "派生路径")
	deviceCmd.PersistentFlags().BoolVarP(&flags.yes, "yes", "y", false, "模拟设备自动确认，不在终端询问")

	deviceCmd.AddCommand(
		newDeviceConfigCmd(flags),
		newDevicePubkeyCmd(flags, &path),
		newDeviceSignCmd(flags, &path, false),
		newDeviceSignCmd(flags, &path, true),
		newDeviceSignMsgCmd(flags, &path),
		newDeviceSignCertCmd(flags, &path),
	)
	return deviceCmd
}

// withClient 打开设备通道，执行 fn 后关闭
func withClient(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, c *ledger.Client, cfg *config.Config) error) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}

	var opts []emulator.Option
	if !flags.yes && term.IsTerminal(int(os.Stdin.Fd())) {
		opts = append(opts, emulator.WithConfirm(terminalConfirm(os.Stdin, cmd.ErrOrStderr())))
	}
	client, closer, err := device.NewClient(*cfg, opts...)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Device.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Device.Timeout)
		defer cancel()
	}
	return fn(ctx, client, cfg)
}

// terminalConfirm 在终端上模拟设备屏幕确认
func terminalConfirm(in io.Reader, out io.Writer) emulator.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, p emulator.Prompt) bool {
		fmt.Fprintf(out, "\n[设备] %s\n  %s\n确认? [y/N]: ", apdu.InsName(p.Ins), p.Summary)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func newDeviceConfigCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "读取应用配置与版本",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, c *ledger.Client, _ *config.Config) error {
				appCfg, err := c.GetAppConfiguration(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Version:            %s\n", appCfg.Version())
				fmt.Fprintf(out, "Contract data:      %t\n", appCfg.DataAllowed)
				fmt.Fprintf(out, "Multi-clause:       %t\n", appCfg.MultiClauseAllowed)
				return nil
			})
		},
	}
}

func newDevicePubkeyCmd(flags *globalFlags, path *string) *cobra.Command {
	var confirm, chainCode bool
	c := &cobra.Command{
		Use:   "pubkey",
		Short: "读取公钥与地址",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, c *ledger.Client, _ *config.Config) error {
				pk, err := c.GetPublicKey(ctx, *path, confirm, chainCode)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Path:       %s\n", *path)
				fmt.Fprintf(out, "Public key: %s\n", hexutil.Encode(pk.Key))
				fmt.Fprintf(out, "Address:    %s\n", pk.Address.Hex())
				if len(pk.ChainCode) > 0 {
					fmt.Fprintf(out, "Chain code: %s\n", hexutil.Encode(pk.ChainCode))
				}
				return nil
			})
		},
	}
	c.Flags().BoolVar(&confirm, "confirm", false, "在设备屏幕上确认地址")
	c.Flags().BoolVar(&chainCode, "chaincode", false, "同时返回链码")
	return c
}

func newDeviceSignCmd(flags *globalFlags, path *string, legacy bool) *cobra.Command {
	var input, output string
	use, short := "sign", "签名交易 JSON 并输出带签名的 RLP"
	if legacy {
		use, short = "legacy-sign", "按旧版协议签名交易 (v ‖ r ‖ s，150 字节分帧)"
	}

	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := readTransaction(input)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTransaction(out, tx, vettx.Unsigned)

			return withClient(cmd, flags, func(ctx context.Context, c *ledger.Client, cfg *config.Config) error {
				var (
					sig *response.Signature
					err error
				)
				if legacy {
					sig, err = c.LegacySignTransaction(ctx, *path, tx)
					if err == nil {
						fmt.Fprintf(out, "Device v:   %d\n", sig.V)
						sig.V = sig.RecoveryID(response.ModeLegacy, cfg.Device.ChainID)
					}
				} else {
					sig, err = c.SignTransaction(ctx, *path, tx)
				}
				if err != nil {
					return err
				}

				signed, err := tx.WithSignature(sig.Bytes())
				if err != nil {
					return err
				}
				raw, err := vettx.Encode(signed, vettx.Signed)
				if err != nil {
					return err
				}
				signer, err := signed.Signer()
				if err != nil {
					return err
				}
				id, err := signed.ID()
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "Signature:  %s\n", hexutil.Encode(sig.Bytes()))
				fmt.Fprintf(out, "Signer:     %s\n", signer.Hex())
				fmt.Fprintf(out, "ID:         %s\n", id.Hex())
				fmt.Fprintf(out, "Raw:        %s\n", hexutil.Encode(raw))

				if output != "" {
					if err := os.WriteFile(output, []byte(hexutil.Encode(raw)+"\n"), 0o644); err != nil {
						return fmt.Errorf("写入输出文件失败: %w", err)
					}
				}
				return nil
			})
		},
	}
	c.Flags().StringVarP(&input, "input", "i", "", "交易 JSON 文件 (- 表示标准输入)")
	c.Flags().StringVarP(&output, "output", "o", "", "已签名交易输出文件")
	_ = c.MarkFlagRequired("input")
	return c
}

func newDeviceSignMsgCmd(flags *globalFlags, path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-msg <message>",
		Short: "签名个人消息",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, c *ledger.Client, _ *config.Config) error {
				sig, err := c.SignPersonalMessage(ctx, *path, []byte(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signature:  %s\n", hexutil.Encode(sig.Bytes()))
				return nil
			})
		},
	}
}

func newDeviceSignCertCmd(flags *globalFlags, path *string) *cobra.Command {
	var input string
	c := &cobra.Command{
		Use:   "sign-cert",
		Short: "签名证书 (规范化后的 JSON 对象)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("读取证书文件失败: %w", err)
			}
			cert = []byte(strings.TrimSpace(string(cert)))

			return withClient(cmd, flags, func(ctx context.Context, c *ledger.Client, _ *config.Config) error {
				sig, err := c.SignCertificate(ctx, *path, cert)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signature:  %s\n", hexutil.Encode(sig.Bytes()))
				return nil
			})
		},
	}
	c.Flags().StringVarP(&input, "input", "i", "", "证书 JSON 文件")
	_ = c.MarkFlagRequired("input")
	return c
}
