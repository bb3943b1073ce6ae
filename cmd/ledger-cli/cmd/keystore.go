package cmd

import (
	"errors"
	"fmt"
	"os"

	"ledger-core/pkg/bip32"
	"ledger-core/pkg/keystore"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newKeystoreCmd() *cobra.Command {
	keystoreCmd := &cobra.Command{
		Use:   "keystore",
		Short: "管理模拟设备的加密助记词",
	}
	keystoreCmd.AddCommand(newKeystoreInitCmd())
	return keystoreCmd
}

func newKeystoreInitCmd() *cobra.Command {
	var (
		output   string
		mnemonic string
		light    bool
	)
	c := &cobra.Command{
		Use:   "init",
		Short: "生成 (或导入) 助记词并加密保存",
		Long: `生成新的 BIP-39 助记词，并使用密码加密保存为 keystore 文件，供 emulator 通道加载。
密码从环境变量 EMULATOR_PASSWORD 读取，未设置时在终端输入。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(output); err == nil {
				return fmt.Errorf("文件 %s 已存在，请先删除或指定其他文件名", output)
			}

			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			if len(password) < 6 {
				return errors.New("密码长度至少需要 6 位")
			}

			if mnemonic == "" {
				mnemonic, err = bip32.GenerateMnemonic(128)
				if err != nil {
					return err
				}
			} else if _, err := bip32.NewWalletFromMnemonic(mnemonic, ""); err != nil {
				return err
			}

			params := keystore.StandardScrypt
			if light {
				params = keystore.LightScrypt
			}
			key, err := keystore.Seal(mnemonic, password, params)
			if err != nil {
				return fmt.Errorf("加密失败: %w", err)
			}
			if err := key.Save(output); err != nil {
				return fmt.Errorf("保存文件失败: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Keystore:   %s\n", output)
			fmt.Fprintf(out, "ID:         %s\n", key.ID)
			return nil
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "emulator.json", "输出的 keystore 文件名")
	c.Flags().StringVar(&mnemonic, "mnemonic", "", "导入已有助记词 (默认生成 12 词)")
	c.Flags().BoolVar(&light, "light", false, "使用低开销 scrypt 参数 (仅限开发环境)")
	return c
}

func readPassword(cmd *cobra.Command) (string, error) {
	if pw := os.Getenv("EMULATOR_PASSWORD"); pw != "" {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("未设置 EMULATOR_PASSWORD 且标准输入不是终端")
	}

	fmt.Fprint(cmd.ErrOrStderr(), "输入密码: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "确认密码: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("两次输入的密码不一致")
	}
	return string(first), nil
}
