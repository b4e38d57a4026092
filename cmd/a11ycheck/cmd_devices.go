// This file contains the device registry listing command.
package main

import (
	"fmt"

	"a11ycheck/internal/device"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the available device profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range device.Names() {
			p := device.Resolve(name)
			marker := " "
			if name == device.DefaultName {
				marker = "*"
			}
			fmt.Printf("%s %-20s %4dx%-4d mobile=%-5v touch=%v\n",
				marker, p.Name, p.Width, p.Height, p.IsMobile, p.HasTouch)
		}
		fmt.Println("\n* default (also used for unrecognized device names)")
		return nil
	},
}
