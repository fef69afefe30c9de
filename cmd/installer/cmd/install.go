// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/go-cmd/pkg/cmd"
	"github.com/siderolabs/go-pointer"
	"github.com/siderolabs/go-procfs/procfs"
	"github.com/spf13/cobra"

	"github.com/provolabs/goldclone/cmd/installer/pkg/install"
	"github.com/provolabs/goldclone/internal/pkg/blockdev"
	"github.com/provolabs/goldclone/pkg/constants"
)

var reboot bool

// installCmd represents the install command.
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Clone the golden image onto the target disk",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		return runInstallCmd(cobraCmd)
	},
}

func init() {
	installCmd.Flags().BoolVar(&reboot, "reboot", false, "Reboot once the installation completes (attended runs always reboot)")

	rootCmd.AddCommand(installCmd)
}

func runInstallCmd(cobraCmd *cobra.Command) error {
	opts := options

	applyKernelParams(&opts)

	if !opts.Unattended {
		opts.Confirm = confirmDisk
		opts.AskHostname = askHostname
	}

	if err := install.Install(cobraCmd.Context(), opts); err != nil {
		return err
	}

	if !rebootAfterInstall(opts.Unattended, reboot) {
		return nil
	}

	if !opts.Unattended {
		fmt.Print("Installation complete, press Enter to reboot: ")

		bufio.NewReader(os.Stdin).ReadString('\n') //nolint:errcheck
	}

	_, err := cmd.Run("reboot")

	return err
}

// rebootAfterInstall decides the end-of-run behavior: attended runs always
// end at the reboot gate, unattended runs reboot only when asked to and
// otherwise leave the live environment running.
func rebootAfterInstall(unattended, rebootFlag bool) bool {
	return !unattended || rebootFlag
}

// applyKernelParams fills in options not set via flags from the kernel
// command line, so a remastered installer medium can run hands-off.
func applyKernelParams(opts *install.Options) {
	cmdline := procfs.ProcCmdline()
	if cmdline == nil {
		return
	}

	if cmdline.Get(constants.KernelParamAuto).First() != nil {
		opts.Unattended = true
	}

	if opts.DiskPath == "" {
		opts.DiskPath = pointer.SafeDeref(cmdline.Get(constants.KernelParamDisk).First())
	}

	if opts.Hostname == "" {
		opts.Hostname = pointer.SafeDeref(cmdline.Get(constants.KernelParamHostname).First())
	}
}

// confirmDisk makes the operator acknowledge the disk about to be erased.
func confirmDisk(disk blockdev.Disk) (bool, error) {
	fmt.Printf("About to ERASE %s (%s, %s). Type 'yes' to continue: ", disk.Path, disk.Name, humanize.IBytes(disk.Size))

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(answer) == "yes", nil
}

func askHostname() (string, error) {
	fmt.Print("Hostname (empty for a generated one): ")

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}

	return answer, nil
}
