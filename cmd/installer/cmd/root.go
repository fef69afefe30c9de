// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cmd implements the installer command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provolabs/goldclone/cmd/installer/pkg/install"
	"github.com/provolabs/goldclone/pkg/constants"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "installer",
	Short: "Clones the golden image onto this machine",
	Long:  ``,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var options = install.Options{}

func init() {
	rootCmd.PersistentFlags().StringVar(&options.DiskPath, "disk", "", "The path to the disk to install to (overrides "+constants.KernelParamDisk+")")
	rootCmd.PersistentFlags().StringVar(&options.ImagePath, "image", constants.DefaultImagePath, "The path to the compressed golden image")
	rootCmd.PersistentFlags().StringVar(&options.Hostname, "hostname", "", "The hostname of the installed system (overrides "+constants.KernelParamHostname+")")
	rootCmd.PersistentFlags().StringVar(&options.HelperScriptPath, "helper-script", constants.DefaultHelperScriptPath, "The path to the post-install helper script")
	rootCmd.PersistentFlags().BoolVar(&options.Unattended, "auto", false, "Run unattended, without any prompts (implied by "+constants.KernelParamAuto+")")
}
